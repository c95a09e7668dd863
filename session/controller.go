// Package session drives the screens of one browser session: key selection,
// upload, progress and the before/after comparison.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mhpenta/autodrip"
)

// State is the screen a session is on.
type State int

const (
	NoKey State = iota
	AwaitingKey
	Ready
	Generating
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case NoKey:
		return "no_key"
	case AwaitingKey:
		return "awaiting_key"
	case Ready:
		return "ready"
	case Generating:
		return "generating"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Messages shown to the user.
const (
	MessageInvalidCredential = "API Key invalid or expired. Please select a project again."
	MessageUploadFailed      = "Failed to generate the drip. The AI might be overwhelmed by the potential."
	MessageRedoFailed        = "Redo failed. The universe wasn't ready."
	MessageNotAnImage        = "Please upload an image file."
)

var (
	// ErrInvalidTransition is returned for actions the current state does not accept.
	ErrInvalidTransition = errors.New("action not allowed in current state")

	// ErrBusy is returned while a generation is in flight.
	ErrBusy = errors.New("generation already in progress")

	// ErrInvalidLevel is returned by SetLevel for levels outside 1..3.
	ErrInvalidLevel = errors.New("invalid level")
)

// ImagePair is the uploaded photo and its restyled version.
type ImagePair struct {
	Original autodrip.DataURI
	Result   autodrip.DataURI

	// MIMEType of Result
	MIMEType string
}

// Upload is a file chosen by the user.
type Upload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// View is a consistent snapshot of the session for rendering.
type View struct {
	State   State
	Level   autodrip.Level
	Message string

	// Pair is set only in Done.
	Pair *ImagePair

	UpdatedAt time.Time
}

// Controller owns the state machine of one session. All methods are safe
// for concurrent use; at most one generation runs at a time.
type Controller struct {
	mu        sync.Mutex
	state     State
	level     autodrip.Level
	message   string
	pair      *ImagePair
	updatedAt time.Time

	gen    autodrip.Generator
	creds  autodrip.CredentialProvider
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a structured logger for the controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a controller. It starts in Ready when creds is nil or already
// has a credential, and in NoKey otherwise.
func New(ctx context.Context, gen autodrip.Generator, creds autodrip.CredentialProvider, opts ...Option) *Controller {
	c := &Controller{
		level:  autodrip.DefaultLevel,
		gen:    gen,
		creds:  creds,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.state = Ready
	if creds != nil {
		has, err := creds.HasCredential(ctx)
		if err != nil {
			c.logger.Warn("credential check failed", "error", err.Error())
		}
		if err != nil || !has {
			c.state = NoKey
		}
	}
	c.updatedAt = c.now()

	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:     c.state,
		Level:     c.level,
		Message:   c.message,
		UpdatedAt: c.updatedAt,
	}
	if c.state == Done && c.pair != nil {
		p := *c.pair
		v.Pair = &p
	}
	return v
}

// Start asks the credential provider to select a key. The session moves to
// Ready whether or not selection succeeds; a bad key surfaces on the first
// generation instead.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != NoKey {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, state)
	}
	c.setStateLocked(AwaitingKey)
	c.mu.Unlock()

	var err error
	if c.creds != nil {
		err = c.creds.SelectCredential(ctx)
	}
	if err != nil {
		c.logger.Warn("credential selection failed, continuing", "error", err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(Ready)
	return nil
}

// SetLevel changes the level used by the next generation.
func (c *Controller) SetLevel(level autodrip.Level) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, int(level))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Ready && c.state != Done {
		return fmt.Errorf("%w: set level in %s", ErrInvalidTransition, c.state)
	}
	c.level = level
	return nil
}

// Upload validates the file and generates synchronously. A rejected file
// leaves the state unchanged and returns autodrip.ErrValidationRejected.
func (c *Controller) Upload(ctx context.Context, u Upload) error {
	run, err := c.beginUpload(u)
	if err != nil {
		return err
	}
	return run(ctx)
}

// UploadAsync is Upload with the generation running in the background.
// The session is in Generating when it returns without error. The channel
// receives the generation result and is then closed.
func (c *Controller) UploadAsync(ctx context.Context, u Upload) (<-chan error, error) {
	run, err := c.beginUpload(u)
	if err != nil {
		return nil, err
	}
	return c.background(ctx, run), nil
}

// Redo generates again from the original photo with more randomness and the
// current level. Only the result is replaced.
func (c *Controller) Redo(ctx context.Context) error {
	run, err := c.beginRedo()
	if err != nil || run == nil {
		return err
	}
	return run(ctx)
}

// RedoAsync is Redo with the generation running in the background. A nil
// channel and nil error mean there was nothing to redo.
func (c *Controller) RedoAsync(ctx context.Context) (<-chan error, error) {
	run, err := c.beginRedo()
	if err != nil || run == nil {
		return nil, err
	}
	return c.background(ctx, run), nil
}

// Reset returns to Ready and clears the images and message.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Generating:
		return ErrBusy
	case Ready, Done, Failed:
		c.pair = nil
		c.message = ""
		c.setStateLocked(Ready)
		return nil
	default:
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, c.state)
	}
}

type runFunc func(ctx context.Context) error

func (c *Controller) background(ctx context.Context, run runFunc) <-chan error {
	done := make(chan error, 1)
	// the request that started the generation may finish first
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		done <- run(bg)
	}()
	return done
}

func (c *Controller) beginUpload(u Upload) (runFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Generating:
		return nil, ErrBusy
	case Ready:
	default:
		return nil, fmt.Errorf("%w: upload in %s", ErrInvalidTransition, c.state)
	}

	contentType := mediaType(u.ContentType)
	if err := autodrip.ValidateUpload(contentType); err != nil {
		c.message = MessageNotAnImage
		c.logger.Info("upload rejected", "filename", u.Filename, "content_type", u.ContentType)
		return nil, err
	}

	original := autodrip.EncodeDataURI(contentType, u.Data)
	params := autodrip.GenerateParams{
		Image:      u.Data,
		MIMEType:   contentType,
		Randomness: autodrip.InitialRandomness,
		Level:      c.level,
	}
	c.pair = nil
	c.message = ""
	c.setStateLocked(Generating)

	c.logger.Info("upload accepted", "filename", u.Filename, "content_type", contentType, "bytes", len(u.Data), "level", int(params.Level))

	return func(ctx context.Context) error {
		return c.generate(ctx, params, original, MessageUploadFailed)
	}, nil
}

func (c *Controller) beginRedo() (runFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Generating:
		return nil, ErrBusy
	case Done:
	default:
		return nil, fmt.Errorf("%w: redo in %s", ErrInvalidTransition, c.state)
	}
	if c.pair == nil {
		return nil, nil
	}

	original := c.pair.Original
	params := autodrip.GenerateParams{
		Image:      []byte(original),
		MIMEType:   original.MIMEType(),
		Randomness: autodrip.RedoRandomness,
		Level:      c.level,
	}
	c.pair = nil
	c.message = ""
	c.setStateLocked(Generating)

	c.logger.Info("redo requested", "level", int(params.Level), "mime_type", params.MIMEType)

	return func(ctx context.Context) error {
		return c.generate(ctx, params, original, MessageRedoFailed)
	}, nil
}

// generate runs outside the lock and applies the outcome.
func (c *Controller) generate(ctx context.Context, params autodrip.GenerateParams, original autodrip.DataURI, failMessage string) error {
	img, err := c.gen.Generate(ctx, params)
	if err == nil && img == nil {
		err = fmt.Errorf("%w: no image returned", autodrip.ErrGenerationFailed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case err == nil:
		c.pair = &ImagePair{
			Original: original,
			Result:   img.DataURI(),
			MIMEType: img.MIMEType,
		}
		c.message = ""
		c.setStateLocked(Done)
	case autodrip.IsInvalidCredential(err):
		c.message = MessageInvalidCredential
		c.setStateLocked(NoKey)
	default:
		c.message = failMessage
		c.setStateLocked(Failed)
	}

	if err != nil {
		c.logger.Warn("generation ended in error", "state", c.state.String(), "error", err.Error())
	}
	return err
}

func (c *Controller) setStateLocked(s State) {
	if c.state != s {
		c.logger.Debug("session state changed", "from", c.state.String(), "to", s.String())
	}
	c.state = s
	c.updatedAt = c.now()
}

// mediaType drops parameters such as "; charset=binary".
func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
