package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/lukasz-falda/libruscli/internal/api"
)

func printMessages(out io.Writer, messages []api.MessageSummary, isRead func(api.MessageSummary) bool) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, " \tID\tDATE\tCORRESPONDENT\tSUBJECT")
	for _, msg := range messages {
		marker := " "
		if !isRead(msg) {
			marker = "*"
		}
		date := ""
		if !msg.Date.IsZero() {
			date = msg.Date.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, msg.ID, date, msg.Correspondent(), msg.Subject)
	}
	_ = tw.Flush()
}

func printDetail(out io.Writer, detail api.MessageDetail) {
	fmt.Fprintf(out, "ID: %s\n", detail.ID)
	if detail.Subject != "" {
		fmt.Fprintf(out, "Subject: %s\n", detail.Subject)
	}
	if detail.Sender != "" {
		fmt.Fprintf(out, "From: %s\n", detail.Sender)
	}
	if detail.Recipient != "" {
		fmt.Fprintf(out, "To: %s\n", detail.Recipient)
	}
	if !detail.Date.IsZero() {
		fmt.Fprintf(out, "Date: %s\n", detail.Date.Format("2006-01-02 15:04:05 -0700"))
	}
	if len(detail.Attachments) > 0 {
		for _, a := range detail.Attachments {
			fmt.Fprintf(out, "Attachment: %s (%s)\n", a.Name, a.URL)
		}
	}
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, detail.Body)
}
