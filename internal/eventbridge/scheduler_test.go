package eventbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCronScheduleExpression_DailyNineAM(t *testing.T) {
	expr, err := cronScheduleExpression("0 9 * * *")

	assert.NoError(t, err)
	assert.Equal(t, "cron(0 9 * * ? *)", expr)
}

func TestCronScheduleExpression_WeekdayListShifted(t *testing.T) {
	// Standard cron Monday/Wednesday/Friday is 1,3,5; EventBridge starts
	// Sunday at 1, so the same days become 2,4,6.
	expr, err := cronScheduleExpression("30 18 * * 1,3,5")

	assert.NoError(t, err)
	assert.Equal(t, "cron(30 18 ? * 2,4,6 *)", expr)
}

func TestCronScheduleExpression_SundayAliases(t *testing.T) {
	expr0, err := cronScheduleExpression("0 9 * * 0")
	assert.NoError(t, err)

	expr7, err := cronScheduleExpression("0 9 * * 7")
	assert.NoError(t, err)

	assert.Equal(t, expr0, expr7)
	assert.Equal(t, "cron(0 9 ? * 1 *)", expr0)
}

func TestCronScheduleExpression_RejectsWrongFieldCount(t *testing.T) {
	_, err := cronScheduleExpression("0 9 * *")

	assert.Error(t, err)
}
