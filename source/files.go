package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/vp8l"
	_ "golang.org/x/image/webp"

	"greenscreen/frame"
)

const (
	DepthFile = "depth.png"
	BodyFile  = "body.png"
)

// ColorFiles are the names tried, in order, for a frame set's color image.
var ColorFiles = []string{"color.png", "color.jpg", "color.jpeg", "color.bmp", "color.tiff", "color.webp", "color.gif"}

// Files replays a frame set captured to a directory: a color image, a
// 16-bit grayscale depth image in millimeters and an 8-bit grayscale body
// index image.
type Files struct {
	dir   string
	loops int
	sent  int
	color frame.Color
	depth frame.Depth
	body  frame.BodyIndex
}

// OpenFiles loads the frame set in dir. Next yields it loops times, or
// forever when loops is 0.
func OpenFiles(dir string, loops int) (*Files, error) {
	logger := slog.Default().With("dir", dir)

	colorPath, err := findColorFile(dir)
	if err != nil {
		return nil, err
	}

	colorImg, format, err := decodeFile(colorPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded color image", "file", colorPath, "format", format)

	depthImg, _, err := decodeFile(filepath.Join(dir, DepthFile))
	if err != nil {
		return nil, err
	}

	bodyImg, _, err := decodeFile(filepath.Join(dir, BodyFile))
	if err != nil {
		return nil, err
	}

	f := &Files{
		dir:   dir,
		loops: loops,
		color: frame.ColorFromImage(colorImg),
		depth: depthFromImage(depthImg),
		body:  bodyFromImage(bodyImg),
	}
	logger.Info("loaded frame set",
		"color", fmt.Sprintf("%dx%d", f.color.Width, f.color.Height),
		"depth", fmt.Sprintf("%dx%d", f.depth.Width, f.depth.Height),
		"body", fmt.Sprintf("%dx%d", f.body.Width, f.body.Height))
	return f, nil
}

func (f *Files) Next(ctx context.Context) (*Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.loops > 0 && f.sent >= f.loops {
		return nil, io.EOF
	}
	f.sent++
	return NewSet(f.color, f.depth, f.body, nil), nil
}

// Sizes reports the color and depth resolutions of the loaded set.
func (f *Files) Sizes() (colorSize, depthSize image.Point) {
	return image.Pt(f.color.Width, f.color.Height), image.Pt(f.depth.Width, f.depth.Height)
}

func (f *Files) Close() error {
	return nil
}

func findColorFile(dir string) (string, error) {
	for _, name := range ColorFiles {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("cannot stat color image %q: %w", path, err)
		}
	}
	return "", fmt.Errorf("no color image in %q", dir)
}

func decodeFile(path string) (img image.Image, format string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("could not open image %q: %w", path, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	img, format, err = image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("could not decode image %q: %w", path, err)
	}
	return img, format, nil
}

func depthFromImage(img image.Image) frame.Depth {
	b := img.Bounds()
	d := frame.Depth{Width: b.Dx(), Height: b.Dy(), Data: make([]uint16, b.Dx()*b.Dy())}

	if g, ok := img.(*image.Gray16); ok {
		for y := range d.Height {
			row := g.Pix[y*g.Stride:]
			for x := range d.Width {
				d.Data[y*d.Width+x] = uint16(row[2*x])<<8 | uint16(row[2*x+1])
			}
		}
		return d
	}

	for y := range d.Height {
		for x := range d.Width {
			d.Data[y*d.Width+x] = color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
		}
	}
	return d
}

func bodyFromImage(img image.Image) frame.BodyIndex {
	b := img.Bounds()
	bi := frame.BodyIndex{Width: b.Dx(), Height: b.Dy(), Data: make([]uint8, b.Dx()*b.Dy())}

	if g, ok := img.(*image.Gray); ok {
		for y := range bi.Height {
			copy(bi.Data[y*bi.Width:(y+1)*bi.Width], g.Pix[y*g.Stride:])
		}
		return bi
	}

	for y := range bi.Height {
		for x := range bi.Width {
			bi.Data[y*bi.Width+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
		}
	}
	return bi
}
