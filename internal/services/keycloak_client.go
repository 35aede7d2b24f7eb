package services

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"encoding/json"
)

// KeycloakClient resolves book owners to their email addresses through the
// identity provider's admin API. The client must carry the realm-management
// view-users role.
type KeycloakClient struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

type keycloakTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type keycloakUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		BaseURL:      baseURL,
		Realm:        realm,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether an identity provider endpoint was supplied.
// Without one the dispatcher falls back to the default recipient.
func (k *KeycloakClient) Configured() bool {
	return k != nil && k.BaseURL != ""
}

// GetUserEmail fetches a user's email address by their provider UUID.
func (k *KeycloakClient) GetUserEmail(userID string) (string, error) {
	token, err := k.getAdminToken()
	if err != nil {
		return "", fmt.Errorf("failed to get admin token: %v", err)
	}

	userURL := fmt.Sprintf("%s/admin/realms/%s/users/%s", k.BaseURL, k.Realm, userID)
	req, err := http.NewRequest("GET", userURL, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("keycloak API error: %d - %s", resp.StatusCode, string(body))
	}

	var user keycloakUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", err
	}

	if user.Email == "" {
		return "", fmt.Errorf("user %s has no email address", userID)
	}

	return user.Email, nil
}

// getAdminToken performs a client credentials grant for the admin API.
func (k *KeycloakClient) getAdminToken() (string, error) {
	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.BaseURL, k.Realm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.ClientID)
	data.Set("client_secret", k.ClientSecret)

	req, err := http.NewRequest("POST", tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed: %d - %s", resp.StatusCode, string(body))
	}

	var tokenResp keycloakTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}

	return tokenResp.AccessToken, nil
}
