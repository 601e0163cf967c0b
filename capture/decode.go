package capture

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder extracts barcode payloads from a frame. A nil slice with a nil
// error means no code was found, the normal case for most frames.
// Errors are transient (bad frame) and never stop the loop.
type Decoder interface {
	Decode(img image.Image) ([]Decoded, error)
}

// ZXingDecoder decodes QR codes and the common 1D symbologies using the
// pure-Go zxing port. Not safe for concurrent use; the capture loop is the
// only caller.
type ZXingDecoder struct {
	qr   gozxing.Reader
	oneD gozxing.Reader
}

// NewZXingDecoder returns a decoder trying QR first, then the 1D
// multi-format reader (EAN, UPC, Code 39/93/128, ITF, Codabar).
func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{
		qr:   qrcode.NewQRCodeReader(),
		oneD: oned.NewMultiFormatOneDReader(nil),
	}
}

func (d *ZXingDecoder) Decode(img image.Image) ([]Decoded, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, err
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	for _, r := range []gozxing.Reader{d.qr, d.oneD} {
		result, err := r.Decode(bmp, hints)
		if err != nil {
			// Not-found is indistinguishable from a bad frame here and
			// both resolve the same way: try the next reader.
			continue
		}
		return []Decoded{{
			Payload:   result.GetText(),
			Symbology: result.GetBarcodeFormat().String(),
		}}, nil
	}
	return nil, nil
}
