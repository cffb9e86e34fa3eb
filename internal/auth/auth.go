// Package auth drives the Microsoft -> Xbox Live -> XSTS -> Minecraft
// authentication pipeline and produces the Profile the launcher needs.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/protonlauncher/launcher/internal/lerr"
)

// ClientID is the Azure AD application id this launcher authenticates as.
const ClientID = "00000000402b5328"

const redirectURI = "https://login.live.com/oauth20_desktop.srf"
const scope = "XboxLive.signin offline_access"

var (
	msaTokenURL  = "https://login.live.com/oauth20_token.srf"
	xboxUserAuthURL = "https://user.auth.xboxlive.com/user/authenticate"
	xstsAuthURL  = "https://xsts.auth.xboxlive.com/xsts/authorize"
	mcAuthURL    = "https://api.minecraftservices.com/authentication/login_with_xbox"
	mcProfileURL = "https://api.minecraftservices.com/minecraft/profile"
	mcValidateURL = "https://authserver.mojang.com/validate"
)

// Profile is the immutable record persisted to account.json, opaque to the
// rest of the system beyond C2.
type Profile struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UUID         string `json:"uuid"`
	Username     string `json:"username"`
}

// Client drives the auth pipeline. It builds its HTTP client from
// retryablehttp the same way the download pool does, since these endpoints
// see the same kind of transient 5xx/connection-reset flakiness.
type Client struct {
	httpClient *http.Client
}

// NewClient builds an auth Client with a bounded-retry HTTP transport.
func NewClient() *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = 30 * time.Second

	return &Client{httpClient: retryClient.StandardClient()}
}

type msaTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
}

type xboxAuthRequest struct {
	Properties   xboxAuthProperties `json:"Properties"`
	RelyingParty string             `json:"RelyingParty"`
	TokenType    string             `json:"TokenType"`
}

type xboxAuthProperties struct {
	AuthMethod string   `json:"AuthMethod,omitempty"`
	SiteName   string   `json:"SiteName,omitempty"`
	RpsTicket  string   `json:"RpsTicket,omitempty"`
	SandboxId  string   `json:"SandboxId,omitempty"`
	UserTokens []string `json:"UserTokens,omitempty"`
}

type xboxAuthResponse struct {
	Token         string `json:"Token"`
	XErr          int64  `json:"XErr"`
	DisplayClaims struct {
		XUI []struct {
			UHS string `json:"uhs"`
		} `json:"xui"`
	} `json:"DisplayClaims"`
}

type minecraftAuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type minecraftProfileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Authenticate runs the full pipeline starting from an authorization code
// obtained by the external consent collaborator (§4.2 steps 2-6).
func (c *Client) Authenticate(ctx context.Context, authorizationCode string) (*Profile, error) {
	tok, err := c.exchangeToken(ctx, url.Values{
		"client_id":    {ClientID},
		"code":         {authorizationCode},
		"grant_type":   {"authorization_code"},
		"redirect_uri": {redirectURI},
	})
	if err != nil {
		return nil, err
	}
	return c.fromMSAToken(ctx, tok)
}

// Refresh re-runs the pipeline from token exchange using the stored refresh
// token instead of a fresh authorization code, reissuing all downstream
// tokens (§4.2 refresh).
func (c *Client) Refresh(ctx context.Context, profile *Profile) (*Profile, error) {
	tok, err := c.exchangeToken(ctx, url.Values{
		"client_id":     {ClientID},
		"refresh_token": {profile.RefreshToken},
		"grant_type":    {"refresh_token"},
		"redirect_uri":  {redirectURI},
	})
	if err != nil {
		return nil, err
	}
	return c.fromMSAToken(ctx, tok)
}

// Validate does a cheap liveness check of a Minecraft access token before
// the caller decides whether a full Refresh is needed.
func (c *Client) Validate(ctx context.Context, accessToken string) bool {
	body, _ := json.Marshal(map[string]string{"accessToken": accessToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mcValidateURL, bytes.NewBuffer(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK
}

func (c *Client) exchangeToken(ctx context.Context, form url.Values) (*msaTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msaTokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &lerr.NetworkError{Stage: "token_exchange", Err: err}
	}
	defer resp.Body.Close()

	var result msaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &lerr.ProtocolError{Stage: "token_exchange", Kind: lerr.MissingField, Err: err}
	}
	if result.Error != "" {
		return nil, &lerr.ProtocolError{Stage: "token_exchange", Kind: lerr.Unknown, Err: fmt.Errorf("%s", result.Error)}
	}
	if result.AccessToken == "" {
		return nil, &lerr.ProtocolError{Stage: "token_exchange", Kind: lerr.MissingField, Err: fmt.Errorf("missing access_token")}
	}
	return &result, nil
}

func (c *Client) fromMSAToken(ctx context.Context, tok *msaTokenResponse) (*Profile, error) {
	xbl, err := c.doXboxRequest(ctx, "xbl", xboxUserAuthURL, xboxAuthRequest{
		Properties: xboxAuthProperties{
			AuthMethod: "RPS",
			SiteName:   "user.auth.xboxlive.com",
			RpsTicket:  "d=" + tok.AccessToken,
		},
		RelyingParty: "http://auth.xboxlive.com",
		TokenType:    "JWT",
	})
	if err != nil {
		return nil, err
	}
	if len(xbl.DisplayClaims.XUI) == 0 {
		return nil, &lerr.ProtocolError{Stage: "xbl", Kind: lerr.MissingField, Err: fmt.Errorf("missing DisplayClaims.xui")}
	}

	xsts, err := c.doXboxRequest(ctx, "xsts", xstsAuthURL, xboxAuthRequest{
		Properties: xboxAuthProperties{
			SandboxId:  "RETAIL",
			UserTokens: []string{xbl.Token},
		},
		RelyingParty: "rp://api.minecraftservices.com/",
		TokenType:    "JWT",
	})
	if err != nil {
		return nil, err
	}
	if xsts.XErr != 0 {
		return nil, &lerr.ProtocolError{Stage: "xsts", Kind: xErrKind(xsts.XErr), Err: fmt.Errorf("XErr=%d", xsts.XErr)}
	}
	if len(xsts.DisplayClaims.XUI) == 0 {
		return nil, &lerr.ProtocolError{Stage: "xsts", Kind: lerr.MissingField, Err: fmt.Errorf("missing DisplayClaims.xui")}
	}
	userHash := xsts.DisplayClaims.XUI[0].UHS

	mc, err := c.loginWithXbox(ctx, userHash, xsts.Token)
	if err != nil {
		return nil, err
	}

	profile, err := c.fetchProfile(ctx, mc.AccessToken)
	if err != nil {
		return nil, err
	}

	profile.AccessToken = mc.AccessToken
	profile.RefreshToken = tok.RefreshToken
	return profile, nil
}

func (c *Client) doXboxRequest(ctx context.Context, stage, endpoint string, body xboxAuthRequest) (*xboxAuthResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", stage, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", stage, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-xbl-contract-version", "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &lerr.NetworkError{Stage: stage, Err: err}
	}
	defer resp.Body.Close()

	var result xboxAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &lerr.ProtocolError{Stage: stage, Kind: lerr.MissingField, Err: fmt.Errorf("%w: %s", err, respBody)}
	}
	return &result, nil
}

func (c *Client) loginWithXbox(ctx context.Context, userHash, xstsToken string) (*minecraftAuthResponse, error) {
	body, _ := json.Marshal(map[string]string{
		"identityToken": fmt.Sprintf("XBL3.0 x=%s;%s", userHash, xstsToken),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mcAuthURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("building minecraft login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &lerr.NetworkError{Stage: "minecraft_login", Err: err}
	}
	defer resp.Body.Close()

	var result minecraftAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &lerr.ProtocolError{Stage: "minecraft_login", Kind: lerr.MissingField, Err: err}
	}
	if result.AccessToken == "" {
		return nil, &lerr.ProtocolError{Stage: "minecraft_login", Kind: lerr.MissingField, Err: fmt.Errorf("missing access_token")}
	}
	return &result, nil
}

func (c *Client) fetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mcProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &lerr.NetworkError{Stage: "profile", Err: err}
	}
	defer resp.Body.Close()

	var result minecraftProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &lerr.ProtocolError{Stage: "profile", Kind: lerr.MissingField, Err: err}
	}
	if result.ID == "" || result.Name == "" {
		return nil, &lerr.ProtocolError{Stage: "profile", Kind: lerr.MissingField, Err: fmt.Errorf("missing id/name")}
	}

	return &Profile{UUID: result.ID, Username: result.Name}, nil
}
