package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/hmgle/harcapture/pkg/masking"
	"github.com/hmgle/harcapture/pkg/sdk"
)

// customerHeader names the header the demo reads the customer from
const customerHeader = "X-Customer-ID"

type user struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	PIN   int    `json:"pin"`
}

type loginResponse struct {
	User  string `json:"user"`
	Token string `json:"token"`
}

// newDemoMux builds the demo application recorded by serve
func newDemoMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("POST /echo", handleEcho)
	mux.HandleFunc("GET /users/{id}", handleUser)
	mux.HandleFunc("POST /login", handleLogin)
	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func handleEcho(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	_, _ = io.Copy(w, r.Body)
}

func handleUser(w http.ResponseWriter, r *http.Request) {
	if ctrl := sdk.ControllerFromRequest(r); ctrl != nil {
		ctrl.SetCustomerID(r.Header.Get(customerHeader))
		ctrl.Mask(masking.WithResponseFieldMaskString([]string{"email"}))
	}

	writeJSON(w, http.StatusOK, user{
		ID:    r.PathValue("id"),
		Name:  "Jane Doe",
		Email: "jane@example.com",
		PIN:   1234,
	})
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.User == "" {
		http.Error(w, "user required", http.StatusBadRequest)
		return
	}

	if ctrl := sdk.ControllerFromRequest(r); ctrl != nil {
		ctrl.SetCustomerID(creds.User)
		ctrl.Mask(
			masking.WithRequestFieldMaskString([]string{"password"}),
			masking.WithResponseFieldMaskString([]string{"token"}),
			masking.WithResponseCookieMask([]string{"session"}),
		)
	}

	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, loginResponse{User: creds.User, Token: token})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
