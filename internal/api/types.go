package api

import (
	"fmt"
	"time"
)

// Folder is a named partition of messages.
type Folder string

const (
	FolderReceived Folder = "received"
	FolderSent     Folder = "sent"
)

func ParseFolder(s string) (Folder, error) {
	switch Folder(s) {
	case FolderReceived, FolderSent:
		return Folder(s), nil
	default:
		return "", fmt.Errorf("unknown folder %q (expected received or sent)", s)
	}
}

// MessageSummary is one row of a folder listing. Immutable once
// fetched. The Read flag is the server's view; the client ORs it with
// its local read-message set at render time.
type MessageSummary struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Subject   string    `json:"subject"`
	Preview   string    `json:"preview"`
	Date      time.Time `json:"date"`
	Read      bool      `json:"read"`
}

// Correspondent is the sender for received messages and the recipient
// for sent ones.
func (m MessageSummary) Correspondent() string {
	if m.Sender != "" {
		return m.Sender
	}
	return m.Recipient
}

type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type MessageDetail struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	Sender      string       `json:"sender,omitempty"`
	Recipient   string       `json:"recipient,omitempty"`
	Date        time.Time    `json:"date"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}
