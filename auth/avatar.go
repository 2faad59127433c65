package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"intelplatform/models"
)

const maxAvatarBytes = 5 << 20

var ErrUnsupportedImage = errors.New("avatar must be a PNG or JPEG image")

// avatarFile is where u's picture lives inside the avatar directory. The
// name comes from the row id so distinct users never share a file.
func (s *Service) avatarFile(u *models.User) string {
	return filepath.Join(s.opts.AvatarDir, "user-"+strconv.FormatInt(u.ID, 10)+".jpg")
}

// SetAvatar stores src as the user's profile picture. PNG and JPEG input is
// accepted and always written out as JPEG.
func (s *Service) SetAvatar(ctx context.Context, username string, src io.Reader) (string, error) {
	u, err := s.Profile(ctx, username)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(src, maxAvatarBytes+1))
	if err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}
	if len(data) > maxAvatarBytes {
		return "", ErrUnsupportedImage
	}
	if mt := mimetype.Detect(data); !mt.Is("image/png") && !mt.Is("image/jpeg") {
		return "", ErrUnsupportedImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	if err := os.MkdirAll(s.opts.AvatarDir, 0o755); err != nil {
		return "", fmt.Errorf("create avatar dir: %w", err)
	}
	path := s.avatarFile(u)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create avatar file: %w", err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 85}); err != nil {
		f.Close()
		return "", fmt.Errorf("encode avatar: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if err := s.users.UpdateAvatar(ctx, username, path); err != nil {
		return "", err
	}
	return path, nil
}

// RemoveAvatar deletes the picture file and clears the profile field.
func (s *Service) RemoveAvatar(ctx context.Context, username string) error {
	u, err := s.Profile(ctx, username)
	if err != nil {
		return err
	}
	for _, p := range []string{u.Avatar, s.avatarFile(u)} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("remove avatar file", zap.String("path", p), zap.Error(err))
		}
	}
	return s.users.UpdateAvatar(ctx, username, "")
}

// AvatarPath resolves the picture to show for u: the stored path when the
// file still exists, else the file named after u's id, else "".
func (s *Service) AvatarPath(u *models.User) string {
	for _, p := range []string{u.Avatar, s.avatarFile(u)} {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
