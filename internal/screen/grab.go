package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os/exec"
	"strings"
	"sync"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("screen")

// Grabber captures the whole desktop.
type Grabber interface {
	Grab(ctx context.Context) (image.Image, error)
}

// DefaultCommands are screenshot tools that write a PNG to stdout, tried in
// order: Wayland, then X11.
var DefaultCommands = [][]string{
	{"grim", "-t", "png", "-"},
	{"maim"},
	{"import", "-window", "root", "png:-"},
}

// ErrNoGrabber is returned when no screenshot command works.
var ErrNoGrabber = errors.New("no working screenshot command")

// CommandGrabber shells out to a screenshot tool. The first command that
// succeeds is remembered and used from then on.
type CommandGrabber struct {
	Commands [][]string

	mu      sync.Mutex
	working []string
}

// NewCommandGrabber uses cmd when set, otherwise DefaultCommands.
func NewCommandGrabber(cmd []string) *CommandGrabber {
	if len(cmd) > 0 {
		return &CommandGrabber{Commands: [][]string{cmd}}
	}
	return &CommandGrabber{Commands: DefaultCommands}
}

func (g *CommandGrabber) Grab(ctx context.Context) (image.Image, error) {
	g.mu.Lock()
	working := g.working
	g.mu.Unlock()
	if working != nil {
		return runGrab(ctx, working)
	}

	var errs []error
	for _, argv := range g.Commands {
		img, err := runGrab(ctx, argv)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.mu.Lock()
		g.working = argv
		g.mu.Unlock()
		log.Infof("using %q for screenshots", strings.Join(argv, " "))
		return img, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoGrabber, errors.Join(errs...))
}

func runGrab(ctx context.Context, argv []string) (image.Image, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty screenshot command")
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return nil, fmt.Errorf("%s: %w", argv[0], err)
	}
	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%s: decode output: %w", argv[0], err)
	}
	return img, nil
}

// Capturer grabs and encodes in one step.
type Capturer struct {
	Grabber Grabber
	Encoder Encoder
}

// Capture returns the full-size and preview JPEGs of one grab.
func (c *Capturer) Capture(ctx context.Context) (full, preview []byte, err error) {
	img, err := c.Grabber.Grab(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c.Encoder.Encode(img)
}

// CapturePreview returns only the preview JPEG.
func (c *Capturer) CapturePreview(ctx context.Context) ([]byte, error) {
	img, err := c.Grabber.Grab(ctx)
	if err != nil {
		return nil, err
	}
	return c.Encoder.EncodePreview(img)
}
