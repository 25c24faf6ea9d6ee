// Package mention rewrites @kb/ and @file: references in a user prompt
// before it reaches the model.
package mention

import (
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"
)

// mentionPattern matches both forms in one pass, so content spliced in
// for a KB mention is never scanned again.
var mentionPattern = regexp.MustCompile(`@kb/(\S+)|@file:(\S+)`)

// KBReader reads a knowledge base file under root.
type KBReader interface {
	ReadKBFile(root, kbPath string) (string, error)
}

// Expander inlines KB content and turns file mentions into tool hints.
type Expander struct {
	kb KBReader
}

// NewExpander creates an expander that reads KB files through kb.
func NewExpander(kb KBReader) *Expander {
	return &Expander{kb: kb}
}

// Expand rewrites every mention in prompt. It must run once per request.
func (e *Expander) Expand(prompt, root string) string {
	return mentionPattern.ReplaceAllStringFunc(prompt, func(match string) string {
		groups := mentionPattern.FindStringSubmatch(match)
		if kbPath := groups[1]; kbPath != "" {
			return e.expandKB(root, kbPath)
		}
		return fileHint(groups[2])
	})
}

func (e *Expander) expandKB(root, kbPath string) string {
	content, err := e.kb.ReadKBFile(root, kbPath)
	if err != nil {
		log.Debug().Err(err).Str("kb_path", kbPath).Msg("KB mention could not be loaded")
		return fmt.Sprintf("@kb/%s (KB load error: Error: %s)", kbPath, err.Error())
	}
	return fmt.Sprintf("Below is the content of knowledge base file \"kb/%s\":\n"+
		"--- KB START [%s] ---\n%s\n--- KB END [%s] ---\n", kbPath, kbPath, content, kbPath)
}

func fileHint(path string) string {
	return fmt.Sprintf("\"%s\" (project file reference; use get_file_content with file_path=\"%s\")", path, path)
}
