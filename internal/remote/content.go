package remote

import (
	"fmt"
	"strings"

	"github.com/joweeba/dTOOL/internal/mcp"
)

// joinContent flattens an ordered MCP content-item list into the single
// string returned to the model. Text items are copied verbatim; resource
// items render as "[Resource: <uri>]" followed by their text body, if any;
// image items render as a size/mime placeholder — the base64 payload
// itself is never embedded in the returned string.
func joinContent(items []mcp.ToolResultContent) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case "text":
			parts = append(parts, item.Text)
		case "resource":
			parts = append(parts, resourceContentString(item))
		case "image":
			parts = append(parts, imageContentString(item))
		default:
			if item.Text != "" {
				parts = append(parts, item.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

func resourceContentString(item mcp.ToolResultContent) string {
	uri := ""
	body := ""
	if item.Resource != nil {
		uri = item.Resource.URI
		body = item.Resource.Text
	}
	header := fmt.Sprintf("[Resource: %s]", uri)
	if body == "" {
		return header
	}
	return header + "\n" + body
}

func imageContentString(item mcp.ToolResultContent) string {
	kb := base64KB(item.Data)
	mime := item.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return fmt.Sprintf("[Image: %s, %dKB base64]", mime, kb)
}

// base64KB estimates the decoded size in whole kilobytes from the encoded
// base64 length, without decoding the payload.
func base64KB(encoded string) int {
	if encoded == "" {
		return 0
	}
	decodedBytes := (len(encoded) * 3) / 4
	kb := decodedBytes / 1024
	if kb == 0 && decodedBytes > 0 {
		kb = 1
	}
	return kb
}
