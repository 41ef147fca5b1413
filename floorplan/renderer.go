package floorplan

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"bitbucket.org/mmdatafocus/houseplan_backend/config"
	"bitbucket.org/mmdatafocus/houseplan_backend/models"
	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	defaultPixelsPerMetre = 50
	defaultMargin         = 20
	borderPx              = 2
)

var (
	background = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	wallColor  = color.NRGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.NRGBA{R: 20, G: 20, B: 20, A: 255}

	roomColors = map[models.RoomType]color.NRGBA{
		models.RoomTypeBedroom:    {R: 198, G: 219, B: 239, A: 255},
		models.RoomTypeLivingRoom: {R: 253, G: 232, B: 178, A: 255},
		models.RoomTypeKitchen:    {R: 252, G: 199, B: 166, A: 255},
		models.RoomTypeBathroom:   {R: 178, G: 226, B: 226, A: 255},
		models.RoomTypeToilet:     {R: 178, G: 226, B: 226, A: 255},
		models.RoomTypeDiningRoom: {R: 253, G: 218, B: 178, A: 255},
		models.RoomTypeGarage:     {R: 210, G: 210, B: 210, A: 255},
		models.RoomTypeBalcony:    {R: 199, G: 233, B: 192, A: 255},
	}
	defaultRoomColor = color.NRGBA{R: 230, G: 230, B: 230, A: 255}
)

// Renderer turns a floor's rooms into a layout and a PNG drawing of it.
type Renderer struct {
	MaxRowWidth    float64
	PixelsPerMetre int
	// MaxPixels caps width x height of the image; 0 means no cap.
	MaxPixels int
	Margin    int
}

func NewRenderer(settings config.Settings) *Renderer {
	return &Renderer{
		MaxRowWidth:    settings.MaxRowWidth,
		PixelsPerMetre: settings.PixelsPerMetre,
		MaxPixels:      settings.MaxImagePixels,
		Margin:         defaultMargin,
	}
}

func (r *Renderer) Layout(rooms []Room) Layout {
	return Pack(rooms, r.MaxRowWidth)
}

func (r *Renderer) scale() int {
	if r.PixelsPerMetre <= 0 {
		return defaultPixelsPerMetre
	}
	return r.PixelsPerMetre
}

func (r *Renderer) px(metres float64) int {
	return int(math.Round(metres * float64(r.scale())))
}

// Rasterize draws layout as a PNG. Errors wrap utils.ErrRenderFailure.
func (r *Renderer) Rasterize(layout Layout) (data []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			data, err = nil, fmt.Errorf("%w: rasterize panicked: %v", utils.ErrRenderFailure, rec)
		}
	}()

	if len(layout.Placements) == 0 || layout.Width <= 0 || layout.Height <= 0 {
		return nil, fmt.Errorf("%w: empty layout", utils.ErrRenderFailure)
	}
	margin := max(r.Margin, 0)
	w := r.px(layout.Width) + 2*margin
	h := r.px(layout.Height) + 2*margin
	if r.MaxPixels > 0 && float64(w)*float64(h) > float64(r.MaxPixels) {
		return nil, fmt.Errorf("%w: image %dx%d exceeds %d pixels", utils.ErrRenderFailure, w, h, r.MaxPixels)
	}

	canvas := imaging.New(w, h, background)
	for _, p := range layout.Placements {
		x0 := margin + r.px(p.Rect.X)
		y0 := margin + r.px(p.Rect.Y)
		rw := max(r.px(p.Rect.Width), 1)
		rh := max(r.px(p.Rect.Height), 1)

		fill, ok := roomColors[p.Room.Type]
		if !ok {
			fill = defaultRoomColor
		}
		canvas = imaging.Paste(canvas, imaging.New(rw, rh, fill), image.Pt(x0, y0))
		canvas = drawBorder(canvas, x0, y0, rw, rh)
		drawLabel(canvas, x0, y0, rw, rh, p.Room.Name, fmt.Sprintf("%.1f x %.1f m", p.Room.Length, p.Room.Width))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrRenderFailure, err)
	}
	return buf.Bytes(), nil
}

func drawBorder(canvas *image.NRGBA, x, y, w, h int) *image.NRGBA {
	bw := min(borderPx, w)
	bh := min(borderPx, h)
	horizontal := imaging.New(w, bh, wallColor)
	vertical := imaging.New(bw, h, wallColor)
	canvas = imaging.Paste(canvas, horizontal, image.Pt(x, y))
	canvas = imaging.Paste(canvas, horizontal, image.Pt(x, y+h-bh))
	canvas = imaging.Paste(canvas, vertical, image.Pt(x, y))
	canvas = imaging.Paste(canvas, vertical, image.Pt(x+w-bw, y))
	return canvas
}

// drawLabel writes the name and size centred in the room, skipping lines
// that do not fit.
func drawLabel(canvas *image.NRGBA, x, y, w, h int, lines ...string) {
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil()
	fitting := make([]string, 0, len(lines))
	for _, line := range lines {
		if font.MeasureString(face, line).Ceil()+2*borderPx < w {
			fitting = append(fitting, line)
		}
	}
	if len(fitting) == 0 || len(fitting)*lineHeight+2*borderPx > h {
		return
	}

	d := &font.Drawer{Dst: canvas, Src: image.NewUniform(labelColor), Face: face}
	top := y + (h-len(fitting)*lineHeight)/2
	for i, line := range fitting {
		lw := font.MeasureString(face, line).Ceil()
		d.Dot = fixed.P(x+(w-lw)/2, top+(i+1)*lineHeight-face.Descent)
		d.DrawString(line)
	}
}
