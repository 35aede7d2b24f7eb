package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"

	appconfig "ms-reminders/internal/config"
	"ms-reminders/internal/models"
)

// ScheduleName identifies the single recurring trigger schedule this service
// owns in the scheduler group.
const ScheduleName = "reminder-cycle-trigger"

// Service encapsulates the EventBridge Scheduler functionality.
type Service struct {
	SchedulerClient *scheduler.Client
	Config          appconfig.Config
}

// NewService creates a new scheduler service.
func NewService(cfg appconfig.Config, schedulerClient *scheduler.Client) *Service {
	return &Service{
		SchedulerClient: schedulerClient,
		Config:          cfg,
	}
}

// EnsureCronSchedule idempotently creates or updates the recurring schedule
// that drops a RUN_CYCLE message on the trigger queue at the configured
// cadence, in the configured time zone.
func (s *Service) EnsureCronSchedule(ctx context.Context) error {
	scheduleExpression, err := cronScheduleExpression(s.Config.ReminderCron)
	if err != nil {
		return fmt.Errorf("cannot translate cadence for EventBridge: %w", err)
	}
	log.Printf("Ensuring schedule '%s' with expression %s (%s)", ScheduleName, scheduleExpression, s.Config.Timezone)

	messageBody := models.SQSTriggerMessageBody{
		Action: "RUN_CYCLE",
		Source: "eventbridge",
	}
	inputJSON, err := json.Marshal(messageBody)
	if err != nil {
		log.Printf("Error marshaling trigger message body to JSON: %v", err)
		return err
	}

	target := types.Target{
		Arn:     aws.String(s.Config.SQSReminderTriggerARN),
		RoleArn: aws.String(s.Config.SchedulerRoleARN),
		Input:   aws.String(string(inputJSON)),
	}

	// First, try to create the schedule
	_, err = s.SchedulerClient.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
		Name:                       aws.String(ScheduleName),
		GroupName:                  aws.String(s.Config.SchedulerGroupName),
		ScheduleExpression:         aws.String(scheduleExpression),
		Target:                     &target,
		FlexibleTimeWindow:         &types.FlexibleTimeWindow{Mode: types.FlexibleTimeWindowModeOff},
		ScheduleExpressionTimezone: aws.String(s.Config.Timezone),
	})

	if err != nil {
		var conflict *types.ConflictException
		if errors.As(err, &conflict) {
			log.Printf("Schedule '%s' already exists. Attempting to update.", ScheduleName)
			_, updateErr := s.SchedulerClient.UpdateSchedule(ctx, &scheduler.UpdateScheduleInput{
				Name:                       aws.String(ScheduleName),
				GroupName:                  aws.String(s.Config.SchedulerGroupName),
				ScheduleExpression:         aws.String(scheduleExpression),
				Target:                     &target,
				FlexibleTimeWindow:         &types.FlexibleTimeWindow{Mode: types.FlexibleTimeWindowModeOff},
				ScheduleExpressionTimezone: aws.String(s.Config.Timezone),
			})
			if updateErr != nil {
				log.Printf("Failed to update EventBridge schedule '%s': %v", ScheduleName, updateErr)
				return updateErr
			}
			log.Printf("Successfully updated EventBridge schedule '%s'.", ScheduleName)
			return nil
		}
		// It was a different error
		log.Printf("Failed to create EventBridge schedule '%s': %v", ScheduleName, err)
		return err
	}

	log.Printf("Successfully created EventBridge schedule '%s'.", ScheduleName)
	return nil
}

// DeleteSchedule removes the trigger schedule from EventBridge.
func (s *Service) DeleteSchedule(ctx context.Context) {
	log.Printf("Deleting schedule '%s'", ScheduleName)

	_, err := s.SchedulerClient.DeleteSchedule(ctx, &scheduler.DeleteScheduleInput{
		Name:      aws.String(ScheduleName),
		GroupName: aws.String(s.Config.SchedulerGroupName),
	})

	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			log.Printf("Schedule '%s' not found for deletion.", ScheduleName)
			return
		}
		log.Printf("Error deleting schedule '%s': %v", ScheduleName, err)
	} else {
		log.Printf("Successfully deleted schedule '%s'", ScheduleName)
	}
}

// cronScheduleExpression rewrites a standard 5-field cron line into the
// 6-field cron(...) form EventBridge expects. EventBridge refuses '*' in both
// day fields at once and numbers weekdays 1-7 starting at Sunday, where
// standard cron uses 0-6 starting at Sunday.
func cronScheduleExpression(standard string) (string, error) {
	fields := strings.Fields(standard)
	if len(fields) != 5 {
		return "", fmt.Errorf("expected 5 cron fields, got %d in %q", len(fields), standard)
	}
	minute, hour, dayOfMonth, month, dayOfWeek := fields[0], fields[1], fields[2], fields[3], fields[4]

	if dayOfWeek == "*" {
		dayOfWeek = "?"
	} else {
		converted, err := shiftWeekdayField(dayOfWeek)
		if err != nil {
			return "", err
		}
		dayOfWeek = converted
		dayOfMonth = "?"
	}
	if dayOfMonth == "*" && dayOfWeek != "?" {
		dayOfMonth = "?"
	}

	return fmt.Sprintf("cron(%s %s %s %s %s *)", minute, hour, dayOfMonth, month, dayOfWeek), nil
}

// shiftWeekdayField maps each numeric weekday in a list/range by +1 so that
// Sunday moves from 0 to 1 and Saturday from 6 to 7. Name forms (MON, FRI)
// pass through untouched.
func shiftWeekdayField(field string) (string, error) {
	parts := strings.Split(field, ",")
	for i, part := range parts {
		bounds := strings.Split(part, "-")
		for j, bound := range bounds {
			n, err := strconv.Atoi(bound)
			if err != nil {
				// Named weekday, keep as-is.
				continue
			}
			if n < 0 || n > 7 {
				return "", fmt.Errorf("weekday %d out of range in %q", n, field)
			}
			if n == 7 {
				n = 0 // both conventions mean Sunday
			}
			bounds[j] = strconv.Itoa(n + 1)
		}
		parts[i] = strings.Join(bounds, "-")
	}
	return strings.Join(parts, ","), nil
}
