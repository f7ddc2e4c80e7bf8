// Package gmail delivers meeting summary emails through the Gmail API using
// the owner's own Google grant.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is called when the token source refreshed the access token.
type TokenUpdateFunc func(token *oauth2.Token) error

type Service struct {
	oauthConfig *oauth2.Config
	endpoint    string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
		},
	}
}

// WithEndpoint points the service at an alternative Gmail API base URL.
func (s *Service) WithEndpoint(endpoint string) *Service {
	s.endpoint = endpoint
	return s
}

// Credentials are the owner's stored Google tokens.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

func (s *Service) gmailService(ctx context.Context, creds Credentials, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       creds.Expiry,
	}

	wrapped := &notifyTokenSource{
		src:      s.oauthConfig.TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, wrapped))}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// SendSummary mails msg from the owner's account to msg.To.
func (s *Service) SendSummary(ctx context.Context, creds Credentials, msg SummaryMessage, onTokenRefresh TokenUpdateFunc) error {
	if msg.To == "" {
		return fmt.Errorf("summary email has no recipient")
	}

	raw, err := BuildSummaryMessage(msg, time.Now())
	if err != nil {
		return err
	}

	srv, err := s.gmailService(ctx, creds, onTokenRefresh)
	if err != nil {
		return err
	}

	_, err = srv.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to send message: %w", err)
	}
	return nil
}
