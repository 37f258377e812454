package mirror

import (
	"fmt"
	"strings"
	"time"

	"github.com/chatvault/chatvault/internal/telegram"
)

const timestampLayout = "2006-01-02 15:04:05"

// mediaPlaceholder stands in for the text of a message that only carries an
// attachment; the attachment itself is mirrored separately after the batch.
const mediaPlaceholder = "[Media]"

// formatRecord renders one message as a single mirror line: timestamp in the
// display timezone, sender, then text or the media placeholder.
func formatRecord(m telegram.Message, loc *time.Location) string {
	text := m.Text
	if text == "" {
		text = mediaPlaceholder
	}
	return fmt.Sprintf("%s - %s: %s", m.Date.In(loc).Format(timestampLayout), m.Sender, text)
}

// batchText joins the formatted lines of a batch into the one text blob sent
// as a single message.
func batchText(batch []telegram.Message, loc *time.Location) string {
	lines := make([]string, 0, len(batch))
	for _, m := range batch {
		lines = append(lines, formatRecord(m, loc))
	}
	return strings.Join(lines, "\n")
}
