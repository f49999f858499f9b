// internal/pipeline/prompt.go
package pipeline

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"imageseo/internal/models"
)

const bulkPrompt = "For each of the following images, provide a detailed, SEO-optimized description " +
	"that can be used as alt text and as a filename. Return the results as a JSON object " +
	"where each key is the image ID and its value is the description."

func singlePrompt(img *models.Image) string {
	language := img.Language
	if language == "" {
		language = "en"
	}
	prompt := fmt.Sprintf("Provide a creative and consistent SEO-optimized alt-text and name "+
		"without extension for this image in %s. Your response must only contain a string "+
		"like this: {\"alt\": \"Alt text here\", \"name\": \"Filename here\"}.", language)
	if img.SeoTerms != "" {
		prompt += fmt.Sprintf(" Also, include the following SEO keywords in a subtle way: %s.", img.SeoTerms)
	}
	return prompt
}

// bulkIntro is the short text segment preceding each image attachment. The
// segment and its image must stay adjacent so the model matches keyword hints
// to the correct attachment.
func bulkIntro(img *models.Image) string {
	intro := fmt.Sprintf("Image ID %s.", img.ID)
	if img.SeoTerms != "" {
		intro += fmt.Sprintf(" Keywords: %s.", img.SeoTerms)
	}
	return intro
}

func originalMime(img *models.Image) string {
	if img.OriginalMime != "" {
		return img.OriginalMime
	}
	if t := mime.TypeByExtension(filepath.Ext(img.OriginalFilename)); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/jpeg"
}
