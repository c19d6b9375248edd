// Package dataset reads the MNIST handwritten digit files in IDX format.
package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"lenet_lib/tensor"
)

// ErrMagic is returned when an IDX header does not carry the expected
// magic number.
var ErrMagic = errors.New("idx: bad magic number")

// ErrHeader is returned when IDX dimensions are zero or describe more data
// than MaxBytes.
var ErrHeader = errors.New("idx: invalid dimensions")

// MaxBytes caps the payload a single IDX file may declare. The MNIST
// training images need about 47 MB.
const MaxBytes = 1 << 30

const (
	labelMagic = 0x00000801
	imageMagic = 0x00000803

	// Classes is the number of digit classes.
	Classes = 10
)

// Standard file names inside an MNIST directory.
const (
	TrainLabelsFile = "train-labels-idx1-ubyte"
	TrainImagesFile = "train-images-idx3-ubyte"
	TestLabelsFile  = "t10k-labels-idx1-ubyte"
	TestImagesFile  = "t10k-images-idx3-ubyte"
)

// Images is a decoded IDX image file.
type Images struct {
	Count, Rows, Cols int
	Pixels            []uint8 // Count × Rows × Cols, row-major per image
}

// Image returns the raw pixels of image i.
func (im *Images) Image(i int) []uint8 {
	size := im.Rows * im.Cols
	return im.Pixels[i*size : (i+1)*size]
}

// Set pairs images with their labels.
type Set struct {
	Images Images
	Labels []uint8
}

// Data is the MNIST training and test split.
type Data struct {
	Train, Test *Set
}

func readHeader(r io.Reader, magic uint32, fields []uint32) error {
	var got uint32
	if err := binary.Read(r, binary.BigEndian, &got); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if got != magic {
		return fmt.Errorf("got 0x%08x, want 0x%08x: %w", got, magic, ErrMagic)
	}
	if err := binary.Read(r, binary.BigEndian, fields); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	return nil
}

// ReadLabels decodes an IDX1 label file.
func ReadLabels(r io.Reader) ([]uint8, error) {
	hdr := make([]uint32, 1)
	if err := readHeader(r, labelMagic, hdr); err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	if hdr[0] > MaxBytes {
		return nil, fmt.Errorf("labels: %d items: %w", hdr[0], ErrHeader)
	}
	labels := make([]uint8, hdr[0])
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("labels: read %d items: %w", hdr[0], err)
	}
	return labels, nil
}

// ReadImages decodes an IDX3 image file.
func ReadImages(r io.Reader) (Images, error) {
	hdr := make([]uint32, 3)
	if err := readHeader(r, imageMagic, hdr); err != nil {
		return Images{}, fmt.Errorf("images: %w", err)
	}
	size := uint64(hdr[1]) * uint64(hdr[2])
	if size == 0 || size > MaxBytes || uint64(hdr[0]) > MaxBytes/size {
		return Images{}, fmt.Errorf("images: %d items of %dx%d: %w", hdr[0], hdr[1], hdr[2], ErrHeader)
	}
	im := Images{Count: int(hdr[0]), Rows: int(hdr[1]), Cols: int(hdr[2])}
	im.Pixels = make([]uint8, im.Count*im.Rows*im.Cols)
	if _, err := io.ReadFull(r, im.Pixels); err != nil {
		return Images{}, fmt.Errorf("images: read %d items of %dx%d: %w", im.Count, im.Rows, im.Cols, err)
	}
	return im, nil
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// LoadSet reads one image file and its label file.
func LoadSet(imagesPath, labelsPath string) (*Set, error) {
	images, err := readFile(imagesPath, ReadImages)
	if err != nil {
		return nil, err
	}
	labels, err := readFile(labelsPath, ReadLabels)
	if err != nil {
		return nil, err
	}
	if images.Count != len(labels) {
		return nil, fmt.Errorf("%s has %d images but %s has %d labels", imagesPath, images.Count, labelsPath, len(labels))
	}
	return &Set{Images: images, Labels: labels}, nil
}

// Load reads the four standard MNIST files from dir.
func Load(dir string) (*Data, error) {
	train, err := LoadSet(filepath.Join(dir, TrainImagesFile), filepath.Join(dir, TrainLabelsFile))
	if err != nil {
		return nil, err
	}
	test, err := LoadSet(filepath.Join(dir, TestImagesFile), filepath.Join(dir, TestLabelsFile))
	if err != nil {
		return nil, err
	}
	return &Data{Train: train, Test: test}, nil
}

// Len is the number of samples in the set.
func (s *Set) Len() int { return len(s.Labels) }

// Sample returns image i scaled to [0, 1] and its one-hot label.
func (s *Set) Sample(i int) (x, y tensor.Vector) {
	px := s.Images.Image(i)
	x = tensor.NewVector(len(px))
	for k, v := range px {
		x[k] = float64(v) / 255
	}
	y = tensor.NewVector(Classes)
	if int(s.Labels[i]) < Classes {
		y[s.Labels[i]] = 1
	}
	return x, y
}

// Samples returns the first n samples, or all of them when n <= 0 or n
// exceeds the set size.
func (s *Set) Samples(n int) (xs, ys []tensor.Vector) {
	if n <= 0 || n > s.Len() {
		n = s.Len()
	}
	xs = make([]tensor.Vector, n)
	ys = make([]tensor.Vector, n)
	for i := 0; i < n; i++ {
		xs[i], ys[i] = s.Sample(i)
	}
	return xs, ys
}
