package issuance

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/tripvera/travel-intake/internal/domain"
	"github.com/tripvera/travel-intake/internal/pkg/httpretry"
	"github.com/tripvera/travel-intake/internal/pkg/logger"
)

// Screenshot canvas dimensions, roughly a headless browser viewport.
const (
	canvasWidth  = 1280
	canvasHeight = 800
	headerHeight = 64
)

// CaseGetter is the slice of the case repository the simulator needs.
type CaseGetter interface {
	GetByID(ctx context.Context, caseID string) (*domain.Case, error)
}

// Service drives simulated issuance runs.
type Service struct {
	cases     CaseGetter
	dir       string
	targetURL string
	portal    *httpretry.Client
}

// NewService creates an issuance simulator that writes screenshots under dir
// and pretends to drive the portal at targetURL.
func NewService(cases CaseGetter, dir, targetURL string) *Service {
	return &Service{cases: cases, dir: dir, targetURL: targetURL}
}

// WithPortalProbe makes Simulate check the portal with a retrying GET before
// rendering, the way the real driver would navigate first. Without a probe
// the portal line on the screenshot reads "simulated".
func (s *Service) WithPortalProbe(c *httpretry.Client) *Service {
	s.portal = c
	return s
}

// Result is the output of one simulated issuance run.
type Result struct {
	ScreenshotPath string
	PolicyNumber   string
	Timestamp      float64
}

// Simulate renders a fake portal screenshot for the case and returns the
// simulated policy number. The caller decides what to do with cases that
// were never priced; the simulator renders whatever the case holds.
func (s *Service) Simulate(ctx context.Context, caseID string) (*Result, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("Travel Policy Issuance: %s %s %d days",
		planLabel(c.Plan), scopeLabel(c.Scope), daysValue(c.Days))

	portalStatus := s.probePortal(ctx)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("issuance_%s.png", c.CaseID))

	policyNumber := "TP-" + strings.ToUpper(firstN(c.CaseID, 8))

	if err := s.renderScreenshot(path, query, policyNumber, portalStatus); err != nil {
		return nil, fmt.Errorf("render screenshot: %w", err)
	}

	logger.Info("simulated issuance",
		"case_id", c.CaseID,
		"policy_number", policyNumber,
		"portal", portalStatus)

	return &Result{
		ScreenshotPath: path,
		PolicyNumber:   policyNumber,
		Timestamp:      float64(time.Now().UnixNano()) / 1e9,
	}, nil
}

// probePortal navigates to the target URL the way the real driver would,
// with retries on transient failures. A failed probe never fails the
// simulation; it only changes the status line on the screenshot.
func (s *Service) probePortal(ctx context.Context) string {
	if s.portal == nil {
		return "simulated"
	}
	resp, err := s.portal.Get(ctx, s.targetURL)
	if err != nil {
		logger.Warn("portal probe failed", "url", s.targetURL, "error", err)
		return "unreachable"
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

// renderScreenshot paints the synthetic portal page: a header bar with the
// target URL and a body with the search query and the issued policy number.
func (s *Service) renderScreenshot(path, query, policyNumber, portalStatus string) error {
	img := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	header := color.RGBA{R: 232, G: 234, B: 237, A: 255}
	ink := color.RGBA{R: 32, G: 33, B: 36, A: 255}
	muted := color.RGBA{R: 95, G: 99, B: 104, A: 255}

	draw.Draw(img, img.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, canvasWidth, headerHeight), image.NewUniform(header), image.Point{}, draw.Src)

	drawText(img, 24, 38, s.targetURL+"  ["+portalStatus+"]", muted)
	drawText(img, 24, 140, query, ink)
	drawText(img, 24, 180, "Simulated policy: "+policyNumber, ink)
	drawText(img, 24, 220, "Captured "+time.Now().UTC().Format(time.RFC3339), muted)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, img)
}

func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func planLabel(p *domain.Plan) string {
	if p == nil {
		return "N/A"
	}
	return string(*p)
}

func scopeLabel(s *domain.Scope) string {
	if s == nil {
		return "N/A"
	}
	return string(*s)
}

func daysValue(d *int) int {
	if d == nil {
		return 0
	}
	return *d
}

func firstN(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
