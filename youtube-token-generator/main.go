// youtube-token-generator runs the OAuth consent flow once and stores the
// refresh token the upload stage reads.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

const (
	default_token_file = "client_token.json"
	exchange_timeout   = time.Minute
)

var errStateMismatch = errors.New("state in pasted URL does not match this request")

type args struct {
	ClientSecret string `arg:"positional,required" help:"client secret file downloaded from the Google console"`
	Output       string `arg:"-o,--output" help:"token file to write (default: client_token.json next to the secret)"`
}

func (args) Description() string {
	return "Authorizes demoreel to upload to a YouTube channel. Open the printed link, then paste the code or the full redirect URL."
}

func main() {
	var parsed args
	arg.MustParse(&parsed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	path, err := authorize(ctx, parsed, os.Stdin, os.Stdout)
	if err != nil {
		stop()
		log.Fatal("Authorization failed", "err", err)
	}
	log.Info("Token saved", "path", path)
}

func authorize(ctx context.Context, parsed args, in io.Reader, out io.Writer) (string, error) {
	secret, err := os.ReadFile(parsed.ClientSecret)
	if err != nil {
		return "", err
	}
	conf, err := google.ConfigFromJSON(secret, youtube.YoutubeUploadScope)
	if err != nil {
		return "", fmt.Errorf("parse client secret: %w", err)
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	fmt.Fprintf(out, "Open this link and approve access:\n%s\n\nCode or redirect URL: ", conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier)))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	code, err := parseCode(line, state)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, exchange_timeout)
	defer cancel()
	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}

	path := tokenPath(parsed)
	return path, saveToken(path, token)
}

// parseCode accepts either the bare code or the whole URL the browser was
// sent to. A URL must carry the state of this request.
func parseCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("no code entered")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}

	redirect, err := url.Parse(input)
	if err != nil {
		return "", err
	}
	query := redirect.Query()
	if msg := query.Get("error"); msg != "" {
		return "", fmt.Errorf("consent denied: %s", msg)
	}
	if query.Get("state") != state {
		return "", errStateMismatch
	}
	code := query.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code")
	}
	return code, nil
}

func tokenPath(parsed args) string {
	if parsed.Output != "" {
		return parsed.Output
	}
	return filepath.Join(filepath.Dir(parsed.ClientSecret), default_token_file)
}

// saveToken writes the token readable by the owner only.
func saveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
