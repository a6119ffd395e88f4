package docker

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

type ImageManager struct {
	client dockerAPI
}

func NewImageManager(c dockerAPI) *ImageManager {
	return &ImageManager{client: c}
}

// ImageForRuntime maps a runtime identifier such as "python3.13" or "node22"
// to an image reference. Values that already look like references pass through.
func ImageForRuntime(runtime string) string {
	if strings.ContainsAny(runtime, ":/@") {
		return runtime
	}
	idx := strings.IndexFunc(runtime, unicode.IsDigit)
	if idx <= 0 {
		return runtime + ":latest"
	}
	return runtime[:idx] + ":" + runtime[idx:]
}

func (im *ImageManager) PullImage(ctx context.Context, imageName string) error {
	log := logger.WithComponent("docker.image")

	log.Info().Str("image", imageName).Msg("Pulling image from registry")
	reader, err := im.client.ImagePull(ctx, imageName, types.ImagePullOptions{})
	if err != nil {
		log.Error().Err(err).Str("image", imageName).Msg("Pull failed")
		return fmt.Errorf("image pull failed: %w", err)
	}
	defer reader.Close()

	progress := logger.NewWriter(log.With().Str("image", imageName).Logger(), "pull")
	defer progress.Flush()

	if err := jsonmessage.DisplayJSONMessagesStream(reader, progress, 0, false, nil); err != nil {
		log.Error().Err(err).Str("image", imageName).Msg("Pull failed")
		return fmt.Errorf("image pull failed: %w", err)
	}

	return nil
}

func (im *ImageManager) EnsureImageAvailable(ctx context.Context, imageName string) error {
	_, _, err := im.client.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("image inspect failed: %w", err)
	}
	return im.PullImage(ctx, imageName)
}
