// Package browser drives a headless Chrome instance for GUI automation.
// Sessions are owned resources: acquire from the Pool at flow start, release
// at flow end.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

type Config struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	CommandTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Headless:       true,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		CommandTimeout: 30 * time.Second,
	}
}

// Session is one live browser context. All input injection is
// coordinate-based; element indices come from the most recent State call and
// are invalidated by the next one.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	config      Config
	logger      *zap.Logger
	mu          sync.Mutex
}

func NewSession(config Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	s := &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		config:      config,
		logger:      logger.With(zap.String("component", "browser_session")),
	}

	if err := chromedp.Run(ctx); err != nil {
		allocCancel()
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	s.logger.Debug("browser session started",
		zap.Bool("headless", config.Headless),
		zap.Int("viewport_w", config.ViewportWidth),
		zap.Int("viewport_h", config.ViewportHeight))
	return s, nil
}

func (s *Session) run(actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.ctx
	if s.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CommandTimeout)
		defer cancel()
	}
	return chromedp.Run(ctx, actions...)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("navigating", zap.String("url", url))
	return s.run(chromedp.Navigate(url))
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

func (s *Session) Click(ctx context.Context, x, y int) error {
	s.logger.Debug("clicking", zap.Int("x", x), zap.Int("y", y))
	return s.mouseClick(x, y, 1)
}

func (s *Session) DoubleClick(ctx context.Context, x, y int) error {
	s.logger.Debug("double clicking", zap.Int("x", x), zap.Int("y", y))
	return s.mouseClick(x, y, 2)
}

func (s *Session) mouseClick(x, y, count int) error {
	return s.run(
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MousePressed, float64(x), float64(y)).
				WithButton(input.Left).WithClickCount(int64(count)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseReleased, float64(x), float64(y)).
				WithButton(input.Left).WithClickCount(int64(count)).Do(ctx)
		}),
	)
}

func (s *Session) TypeText(ctx context.Context, text string) error {
	s.logger.Debug("typing", zap.Int("chars", len(text)))
	return s.run(
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, ch := range text {
				if err := input.DispatchKeyEvent(input.KeyChar).
					WithText(string(ch)).Do(ctx); err != nil {
					return err
				}
			}
			return nil
		}),
	)
}

// namedKeys maps the key names the model emits to chromedp key sequences.
var namedKeys = map[string]string{
	"enter":     kb.Enter,
	"return":    kb.Enter,
	"tab":       kb.Tab,
	"escape":    kb.Escape,
	"esc":       kb.Escape,
	"backspace": kb.Backspace,
	"delete":    kb.Delete,
	"up":        kb.ArrowUp,
	"down":      kb.ArrowDown,
	"left":      kb.ArrowLeft,
	"right":     kb.ArrowRight,
	"pageup":    kb.PageUp,
	"pagedown":  kb.PageDown,
	"home":      kb.Home,
	"end":       kb.End,
}

func (s *Session) PressKey(ctx context.Context, key string) error {
	seq, ok := namedKeys[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		if len([]rune(key)) != 1 {
			return fmt.Errorf("unknown key %q", key)
		}
		seq = key
	}
	s.logger.Debug("pressing key", zap.String("key", key))
	return s.run(chromedp.KeyEvent(seq))
}

func (s *Session) Scroll(ctx context.Context, dx, dy int) error {
	s.logger.Debug("scrolling", zap.Int("dx", dx), zap.Int("dy", dy))
	return s.run(
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseWheel, 0, 0).
				WithDeltaX(float64(dx)).
				WithDeltaY(float64(dy)).Do(ctx)
		}),
	)
}

func (s *Session) MoveMouse(ctx context.Context, x, y int) error {
	return s.run(
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseMoved, float64(x), float64(y)).Do(ctx)
		}),
	)
}

func (s *Session) Drag(ctx context.Context, fromX, fromY, toX, toY int) error {
	s.logger.Debug("dragging",
		zap.Int("from_x", fromX), zap.Int("from_y", fromY),
		zap.Int("to_x", toX), zap.Int("to_y", toY))
	return s.run(
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MousePressed, float64(fromX), float64(fromY)).
				WithButton(input.Left).WithClickCount(1).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseMoved, float64(toX), float64(toY)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseReleased, float64(toX), float64(toY)).
				WithButton(input.Left).WithClickCount(1).Do(ctx)
		}),
	)
}

func (s *Session) pageHTML() (string, error) {
	var content string
	err := s.run(
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			content, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return content, nil
}

// FindElement matches the query against the current interactive elements and
// returns a short description of the first hit.
func (s *Session) FindElement(ctx context.Context, query string) (string, error) {
	state, err := s.State(ctx)
	if err != nil {
		return "", err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	for _, el := range state.InteractiveElements {
		if strings.Contains(strings.ToLower(el.Text), q) ||
			strings.Contains(strings.ToLower(el.Attrs["name"]), q) ||
			strings.Contains(strings.ToLower(el.Attrs["id"]), q) {
			return fmt.Sprintf("[%d] <%s> %q", el.Index, el.Tag, el.Text), nil
		}
	}
	return "", fmt.Errorf("no element matching %q", query)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("closing browser session")
	s.cancel()
	s.allocCancel()
	return nil
}
