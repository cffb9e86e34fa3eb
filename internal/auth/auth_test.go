package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSaveLoadProfile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := &Profile{AccessToken: "tok", RefreshToken: "ref", UUID: "uuid-1", Username: "Steve"}

	if err := SaveProfile(dir, p); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	got, err := LoadProfile(dir)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if *got != *p {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, p)
	}
}

func TestXErrKind(t *testing.T) {
	cases := map[int64]string{
		2148916233: "no_xbox_account",
		2148916238: "child_account",
		2148916227: "banned",
		9999999:    "unknown",
	}
	for code, want := range cases {
		if got := xErrKind(code).String(); got != want {
			t.Errorf("xErrKind(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestAuthenticate_FullPipeline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "msa-access",
			"refresh_token": "msa-refresh",
		})
	})
	mux.HandleFunc("/xbl", func(w http.ResponseWriter, r *http.Request) {
		body, _ := decodeXboxRequest(r)
		if !strings.Contains(body.Properties.RpsTicket, "msa-access") {
			t.Errorf("xbl request missing msa token: %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"Token": "xbl-token",
			"DisplayClaims": map[string]any{
				"xui": []map[string]string{{"uhs": "user-hash"}},
			},
		})
	})
	mux.HandleFunc("/xsts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"Token": "xsts-token",
			"DisplayClaims": map[string]any{
				"xui": []map[string]string{{"uhs": "user-hash"}},
			},
		})
	})
	mux.HandleFunc("/mc-login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["identityToken"] != "XBL3.0 x=user-hash;xsts-token" {
			t.Errorf("unexpected identityToken: %s", body["identityToken"])
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "mc-access"})
	})
	mux.HandleFunc("/mc-profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer mc-access" {
			t.Errorf("missing bearer token: %s", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "uuid-1", "name": "Steve"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	msaTokenURL = server.URL + "/token"
	xboxUserAuthURL = server.URL + "/xbl"
	xstsAuthURL = server.URL + "/xsts"
	mcAuthURL = server.URL + "/mc-login"
	mcProfileURL = server.URL + "/mc-profile"

	c := NewClient()
	profile, err := c.Authenticate(context.Background(), "some-code")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if profile.UUID != "uuid-1" || profile.Username != "Steve" || profile.AccessToken != "mc-access" {
		t.Errorf("unexpected profile: %+v", profile)
	}
}

func decodeXboxRequest(r *http.Request) (xboxAuthRequest, error) {
	var body xboxAuthRequest
	err := json.NewDecoder(r.Body).Decode(&body)
	return body, err
}
