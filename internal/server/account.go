package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"taskdeck/internal/engine"
)

type sessionOutput struct {
	SetCookie http.Cookie     `header:"Set-Cookie"`
	Body      SessionEnvelope `json:"body"`
}

func sessionCookie(cfg AuthConfig, sess engine.Session) http.Cookie {
	return http.Cookie{
		Name:     tokenCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func registerAccount(api huma.API, e engine.Engine, cfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Create an account",
		Tags:          []string{"auth"},
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest `json:"body"`
	}) (*sessionOutput, error) {
		sess, err := e.Register(ctx, engine.RegisterOptions{
			Name:            input.Body.Name,
			Email:           input.Body.Email,
			Password:        input.Body.Password,
			ConfirmPassword: input.Body.ConfirmPassword,
		})
		if err != nil {
			return nil, handleError(err, "Registration failed")
		}
		return &sessionOutput{
			SetCookie: sessionCookie(cfg, sess),
			Body:      SessionEnvelope{Success: true, Message: "User registered successfully", Token: sess.Token, User: sess.User},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in and receive a token",
		Tags:        []string{"auth"},
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*sessionOutput, error) {
		sess, err := e.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err, "Login failed")
		}
		return &sessionOutput{
			SetCookie: sessionCookie(cfg, sess),
			Body:      SessionEnvelope{Success: true, Message: "Login successful", Token: sess.Token, User: sess.User},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/auth/logout",
		Summary:     "Clear the token cookie",
		Tags:        []string{"auth"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		SetCookie http.Cookie     `header:"Set-Cookie"`
		Body      MessageEnvelope `json:"body"`
	}, error) {
		return &struct {
			SetCookie http.Cookie     `header:"Set-Cookie"`
			Body      MessageEnvelope `json:"body"`
		}{
			SetCookie: http.Cookie{
				Name:     tokenCookie,
				Path:     "/",
				Expires:  time.Unix(0, 0),
				MaxAge:   -1,
				HttpOnly: true,
				Secure:   cfg.CookieSecure,
			},
			Body: MessageEnvelope{Success: true, Message: "Logged out successfully"},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Current user",
		Tags:        []string{"auth"},
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserEnvelope `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		user, err := e.Profile(ctx, actorID)
		if err != nil {
			return nil, handleError(err, "Failed to fetch user")
		}
		return &struct {
			Body UserEnvelope `json:"body"`
		}{Body: UserEnvelope{Success: true, User: user}}, nil
	})
}
