package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/remiPra/chemins-essentiels-admin/core"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	stateCookie = "admin_oauth_state"
	tokenTTL    = 7 * 24 * time.Hour
)

// ErrNotAdmin is returned when a login succeeds but the account is not on the
// ADMIN_LOGINS allow-list.
var ErrNotAdmin = errors.New("account is not allowed to administer the site")

var (
	loginHandler    http.HandlerFunc
	callbackHandler http.HandlerFunc

	githubOauthConfig *oauth2.Config
	oidcOauthConfig   *oauth2.Config
	verifier          *oidc.IDTokenVerifier

	jwtSecret   []byte
	adminLogins map[string]bool
)

// AppClaims are the claims of the admin session token.
type AppClaims struct {
	jwt.RegisteredClaims
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	Name      string `json:"name"`
}

type OIDCClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
	Sub               string `json:"sub"`
}

// InitAuth picks the login provider from the environment. OIDC wins over
// GitHub when both are configured.
func InitAuth() {
	oidcConfigured := os.Getenv("OIDC_ISSUER_URL") != "" && os.Getenv("OIDC_CLIENT_ID") != ""
	githubConfigured := os.Getenv("GITHUB_CLIENT_ID") != "" && os.Getenv("GITHUB_CLIENT_SECRET") != ""

	switch {
	case oidcConfigured && initOIDC():
		logrus.Info("Using OIDC authentication provider")
		loginHandler, callbackHandler = handleOIDCLogin, handleOIDCCallback
	case githubConfigured:
		logrus.Info("Using GitHub authentication provider")
		initGitHub()
		loginHandler, callbackHandler = handleGitHubLogin, handleGitHubCallback
	default:
		logrus.Warn("No authentication provider configured")
		loginHandler, callbackHandler = notConfigured, notConfigured
	}

	SetSecret(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}
	SetAdminLogins(os.Getenv("ADMIN_LOGINS"))
}

// SetSecret sets the HMAC key tokens are signed with.
func SetSecret(secret string) {
	jwtSecret = []byte(secret)
}

// SetAdminLogins restricts logins to a comma-separated list. An empty list
// admits every account the provider authenticates.
func SetAdminLogins(list string) {
	adminLogins = nil
	for _, login := range strings.Split(list, ",") {
		login = strings.ToLower(strings.TrimSpace(login))
		if login == "" {
			continue
		}
		if adminLogins == nil {
			adminLogins = make(map[string]bool)
		}
		adminLogins[login] = true
	}
	if adminLogins != nil {
		logrus.WithField("count", len(adminLogins)).Info("Admin allow-list enabled")
	}
}

func isAdmin(user *core.User) bool {
	if adminLogins == nil {
		return true
	}
	return adminLogins[strings.ToLower(user.Login)] || (user.Email != "" && adminLogins[strings.ToLower(user.Email)])
}

func HandleLogin(w http.ResponseWriter, r *http.Request) {
	if loginHandler == nil {
		notConfigured(w, r)
		return
	}
	loginHandler(w, r)
}

func HandleCallback(w http.ResponseWriter, r *http.Request) {
	if callbackHandler == nil {
		notConfigured(w, r)
		return
	}
	callbackHandler(w, r)
}

func notConfigured(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Authentication not configured", http.StatusInternalServerError)
}

func initGitHub() {
	githubOauthConfig = &oauth2.Config{
		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
	}
}

func initOIDC() bool {
	issuer := os.Getenv("OIDC_ISSUER_URL")
	clientID := os.Getenv("OIDC_CLIENT_ID")

	provider, err := oidc.NewProvider(context.Background(), issuer)
	if err != nil {
		logrus.WithError(err).WithField("issuer", issuer).Error("Failed to create OIDC provider")
		return false
	}

	oidcOauthConfig = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint:     provider.Endpoint(),
	}
	verifier = provider.Verifier(&oidc.Config{ClientID: clientID})
	return true
}

// setState stores a random state in a short-lived cookie and returns it.
func setState(w http.ResponseWriter, r *http.Request) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

func checkState(r *http.Request) bool {
	c, err := r.Cookie(stateCookie)
	return err == nil && c.Value != "" && c.Value == r.FormValue("state")
}

func handleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state, err := setState(w, r)
	if err != nil {
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, githubOauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func handleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if !checkState(r) {
		logrus.Warn("OAuth state mismatch on GitHub callback")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	token, err := githubOauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		logrus.WithError(err).Error("Failed to exchange GitHub token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	resp, err := githubOauthConfig.Client(r.Context(), token).Get("https://api.github.com/user")
	if err != nil {
		logrus.WithError(err).Error("Failed to get user from GitHub")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	defer resp.Body.Close()

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&githubUser); err != nil {
		logrus.WithError(err).Error("Failed to decode GitHub user")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	completeLogin(w, r, &core.User{
		Subject:   fmt.Sprintf("github:%d", githubUser.ID),
		Login:     githubUser.Login,
		Email:     githubUser.Email,
		AvatarURL: githubUser.AvatarURL,
		Name:      githubUser.Name,
	})
}

func handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	state, err := setState(w, r)
	if err != nil {
		http.Error(w, "Failed to generate state for OIDC login", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, oidcOauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	if !checkState(r) {
		logrus.Warn("OAuth state mismatch on OIDC callback")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		logrus.Error("No code in OIDC callback")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	token, err := oidcOauthConfig.Exchange(r.Context(), code)
	if err != nil {
		logrus.WithError(err).Error("Failed to exchange OIDC token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		logrus.Error("No id_token in token response")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	idToken, err := verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		logrus.WithError(err).Error("Failed to verify ID token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		logrus.WithError(err).Error("Failed to extract claims from ID token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	user := &core.User{
		Subject:   claims.Sub,
		Login:     claims.PreferredUsername,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
		Name:      claims.Name,
	}
	if user.Login == "" {
		user.Login = user.Email
	}
	completeLogin(w, r, user)
}

// completeLogin issues the admin token and hands it to the front-end.
func completeLogin(w http.ResponseWriter, r *http.Request, user *core.User) {
	log := logrus.WithFields(logrus.Fields{"subject": user.Subject, "login": user.Login})

	token, err := IssueToken(user)
	if err != nil {
		log.WithError(err).Warn("Login refused")
		http.Redirect(w, r, "/?error=forbidden", http.StatusTemporaryRedirect)
		return
	}
	log.Info("Admin logged in")
	http.Redirect(w, r, "/?token="+token, http.StatusTemporaryRedirect)
}

// IssueToken signs a token for user, or returns ErrNotAdmin when the user is
// not on the allow-list.
func IssueToken(user *core.User) (string, error) {
	if !isAdmin(user) {
		return "", ErrNotAdmin
	}
	if len(jwtSecret) == 0 {
		return "", errors.New("JWT_SECRET is not set")
	}

	now := time.Now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Login:     user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Name:      user.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

func ParseJWT(tokenString string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
