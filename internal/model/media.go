package model

// An ImageType is a content type that can be streamed by the image route.
type ImageType int

const (
	// NotImage is anything that is not served as an image.
	NotImage ImageType = iota
	// JPEG covers image/jpeg and the non-standard image/jpg.
	JPEG
	// PNG covers image/png.
	PNG
)

var imageTypes = map[string]ImageType{
	"image/jpeg": JPEG,
	"image/jpg":  JPEG,
	"image/png":  PNG,
}

// ClassifyImage returns the ImageType of the given content type.
// The match is exact: no parameters, no case folding.
func ClassifyImage(contentType string) ImageType {
	return imageTypes[contentType]
}

// IsServableAsImage returns true if the file can be streamed as an image.
func IsServableAsImage(f *File) bool {
	return f != nil && ClassifyImage(f.ContentType) != NotImage
}

func (t ImageType) String() string {
	switch t {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	default:
		return "none"
	}
}
