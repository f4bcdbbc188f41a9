package videouploader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/pashonic/demoreel/src/config"
	"github.com/pashonic/demoreel/src/videobuilder"
)

const youtube_link = "https://youtu.be/"

func getTokenFromFile(tokenFilePath string) (*oauth2.Token, error) {
	file, err := os.Open(tokenFilePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(file).Decode(token); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", tokenFilePath, err)
	}
	return token, nil
}

// Upload publishes the reel and returns its short link.
func Upload(ctx context.Context, conf config.Youtube, video videobuilder.OutputVideo) (string, error) {

	// Get config using google client config secret file
	byteData, err := os.ReadFile(conf.ClientSecretFile)
	if err != nil {
		return "", err
	}
	oauthConfig, err := google.ConfigFromJSON(byteData, youtube.YoutubeUploadScope)
	if err != nil {
		return "", err
	}

	// Get Token file
	token, err := getTokenFromFile(conf.ClientTokenFile)
	if err != nil {
		return "", err
	}

	// Initialize service
	service, err := youtube.NewService(ctx, option.WithTokenSource(oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return "", err
	}

	// Create upload parameter object
	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       conf.Title,
			Description: Description(conf.Description, video.Clips),
			CategoryId:  conf.CategoryId,
			Tags:        conf.Tags,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: conf.Privacy},
	}
	call := service.Videos.Insert([]string{"snippet,status"}, upload)

	// Open video file
	file, err := os.Open(video.FilePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Upload video
	response, err := call.Media(file).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}
	log.Info("Upload successful", "id", response.Id)
	return youtube_link + response.Id, nil
}

// Description appends a chapter line per clip to the base description.
func Description(base string, clips []videobuilder.OutputClip) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")
	for _, clip := range clips {
		fmt.Fprintf(&b, "%v %v\n", secondsToMinutes(int(clip.StartTimeSec)), clip.Name)
	}
	return b.String()
}

func secondsToMinutes(inSeconds int) string {
	minutes := inSeconds / 60
	seconds := inSeconds % 60
	return fmt.Sprintf("%v:%02d", minutes, seconds)
}
