package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestParseCode(t *testing.T) {
	code, err := parseCode("  4/0AbCdEf\n", "s1")
	require.NoError(t, err)
	assert.Equal(t, "4/0AbCdEf", code)

	code, err = parseCode("http://localhost/?state=s1&code=4%2F0AbCdEf&scope=youtube.upload", "s1")
	require.NoError(t, err)
	assert.Equal(t, "4/0AbCdEf", code)

	_, err = parseCode("http://localhost/?state=other&code=x", "s1")
	assert.ErrorIs(t, err, errStateMismatch)

	_, err = parseCode("http://localhost/?error=access_denied&state=s1", "s1")
	assert.ErrorContains(t, err, "access_denied")

	_, err = parseCode("http://localhost/?state=s1", "s1")
	assert.ErrorContains(t, err, "no code")

	_, err = parseCode("\n", "s1")
	assert.Error(t, err)
}

func TestTokenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("secrets", "client_token.json"), tokenPath(args{ClientSecret: filepath.Join("secrets", "client.json")}))
	assert.Equal(t, "tok.json", tokenPath(args{ClientSecret: "client.json", Output: "tok.json"}))
}

func TestSaveToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "client_token.json")
	token := &oauth2.Token{AccessToken: "ya29.a0", RefreshToken: "1//0g", TokenType: "Bearer", Expiry: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	require.NoError(t, saveToken(path, token))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	var loaded oauth2.Token
	require.NoError(t, json.NewDecoder(file).Decode(&loaded))
	assert.Equal(t, "1//0g", loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))
}

func TestAuthorizeBadSecret(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "client.json")
	require.NoError(t, os.WriteFile(secret, []byte(`{"nothing": true}`), 0600))

	_, err := authorize(context.Background(), args{ClientSecret: secret}, strings.NewReader(""), &strings.Builder{})
	assert.ErrorContains(t, err, "client secret")

	_, err = authorize(context.Background(), args{ClientSecret: filepath.Join(dir, "missing.json")}, strings.NewReader(""), &strings.Builder{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAuthorizeEmptyCode(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "client.json")
	installed := `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"shh","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`
	require.NoError(t, os.WriteFile(secret, []byte(installed), 0600))

	var out strings.Builder
	_, err := authorize(context.Background(), args{ClientSecret: secret}, strings.NewReader("\n"), &out)
	assert.ErrorContains(t, err, "no code")
	assert.Contains(t, out.String(), "code_challenge_method=S256")
	assert.Contains(t, out.String(), "access_type=offline")

	_, err = os.Stat(filepath.Join(dir, default_token_file))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
