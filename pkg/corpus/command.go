package corpus

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command is a Transliterator that pipes the text through an external
// program, such as a grapheme-to-phoneme converter.
type Command struct {
	Name string
	Args []string
}

// Transliterate runs the command with text on stdin and returns stdout.
func (c Command) Transliterate(ctx context.Context, text string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", c.Name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", c.Name, err)
	}
	return stdout.String(), nil
}
