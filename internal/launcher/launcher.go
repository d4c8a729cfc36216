package launcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrSchemeNotAllowed = errors.New("url scheme not allowed")
	ErrNoHelper         = errors.New("no url handler available")
)

// Opener hands a URL to whatever is able to navigate to it.
type Opener interface {
	Open(ctx context.Context, rawURL string) error
}

// Validate parses rawURL and checks that it is absolute. When allowed is non-empty the scheme must
// be one of its entries.
func Validate(rawURL string, allowed map[string]struct{}) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, trimmed)
	}
	if len(allowed) > 0 {
		if _, ok := allowed[strings.ToLower(parsed.Scheme)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrSchemeNotAllowed, parsed.Scheme)
		}
	}
	return parsed, nil
}

type runFunc func(ctx context.Context, name string, args ...string) error

// SystemOpener opens URLs with the desktop's default handler.
type SystemOpener struct {
	goos     string
	lookPath func(string) (string, error)
	run      runFunc
}

// NewSystemOpener returns an opener for the running operating system.
func NewSystemOpener() *SystemOpener {
	return &SystemOpener{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			if err != nil {
				if msg := strings.TrimSpace(string(out)); msg != "" {
					return fmt.Errorf("%s: %w: %s", name, err, msg)
				}
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		},
	}
}

func (o *SystemOpener) helper() (string, []string) {
	switch o.goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}

// CanOpen reports whether rawURL is absolute and a handler program is installed.
func (o *SystemOpener) CanOpen(rawURL string) bool {
	if _, err := Validate(rawURL, nil); err != nil {
		return false
	}
	name, _ := o.helper()
	_, err := o.lookPath(name)
	return err == nil
}

// Open launches the platform handler for rawURL and waits for it to exit.
func (o *SystemOpener) Open(ctx context.Context, rawURL string) error {
	parsed, err := Validate(rawURL, nil)
	if err != nil {
		return err
	}
	name, args := o.helper()
	if _, err := o.lookPath(name); err != nil {
		return fmt.Errorf("%w: %s", ErrNoHelper, name)
	}
	return o.run(ctx, name, append(args, parsed.String())...)
}

// CaptureOpener records URLs instead of opening them. Servers use it to hand the chosen URL back
// to the client, which does the actual navigation.
type CaptureOpener struct {
	mu      sync.Mutex
	allowed map[string]struct{}
	opened  []string
}

// NewCaptureOpener accepts the given schemes, or http and https when none are given.
func NewCaptureOpener(schemes ...string) *CaptureOpener {
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	allowed := make(map[string]struct{}, len(schemes))
	for _, scheme := range schemes {
		scheme = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(scheme), "://"))
		if scheme != "" {
			allowed[scheme] = struct{}{}
		}
	}
	return &CaptureOpener{allowed: allowed}
}

func (c *CaptureOpener) Open(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parsed, err := Validate(rawURL, c.allowed)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.opened = append(c.opened, parsed.String())
	c.mu.Unlock()
	return nil
}

// Last returns the most recently captured URL.
func (c *CaptureOpener) Last() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.opened) == 0 {
		return "", false
	}
	return c.opened[len(c.opened)-1], true
}
