// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package site

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

// ErrBanned is returned when a site reports a temporary IP ban.
var ErrBanned = errors.New("site: IP address temporarily banned")

const (
	// abortPause is slept before giving up on a bad login or a ban.
	abortPause = 5 * time.Second

	challengeMinWait = 10
	challengeMaxWait = 50
)

/*
HandleError grades a site response before its body is parsed.

Returns:
  - true, nil when the response is usable
  - true, nil after a random 10..50s backoff when a challenge page was served
  - false with a WRONG_LOGIN error when the site served its login placeholder image
  - false with [ErrBanned] when the site reports an IP ban

The abort cases pause for 5 seconds before returning.
*/
func (s *Session) HandleError(ctx context.Context, resp *http.Response, body []byte) (bool, error) {
	contentType := resp.Header.Get("Content-Type")
	html := strings.Contains(contentType, "text/html")

	switch {
	case strings.Contains(contentType, "image/gif"):
		err := apperr.WrongLogin("exhentai")
		s.logger.Error("site_wrong_login", slog.String("url", resp.Request.URL.String()))
		s.notifier.Error("site", "Provided exhentai credentials are incorrect!")
		return false, errors.Join(err, s.sleep(ctx, abortPause))

	case bytes.Contains(body, []byte("Your IP address has been")):
		s.logger.Error("site_ip_banned", slog.String("url", resp.Request.URL.String()))
		s.notifier.Error("site", "Your IP address has been temporarily banned from g.e-/exhentai")
		return false, errors.Join(ErrBanned, s.sleep(ctx, abortPause))

	case html && bytes.Contains(body, []byte("You are opening")):
		wait := time.Duration(challengeMinWait+rand.IntN(challengeMaxWait-challengeMinWait+1)) * time.Second
		s.logger.Warn("site_challenge_backoff", slog.Duration("wait", wait))
		if err := s.sleep(ctx, wait); err != nil {
			return false, err
		}
	}
	return true, nil
}
