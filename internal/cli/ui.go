package cli

import (
	"fmt"
	"io"

	"github.com/lukasz-falda/libruscli/internal/api"
	"github.com/lukasz-falda/libruscli/internal/app"
	"github.com/lukasz-falda/libruscli/internal/policy"
)

// consoleUI renders listings and toasts to the command's writers.
// Toasts go to stderr so piped listing output stays clean.
type consoleUI struct {
	out    io.Writer
	errOut io.Writer
	app    *app.App
}

func (u *consoleUI) RenderMessages(folder api.Folder, messages []api.MessageSummary) {
	if len(messages) == 0 {
		fmt.Fprintf(u.out, "No messages in %s\n", folder)
		return
	}
	printMessages(u.out, messages, u.isRead)
}

func (u *consoleUI) RenderDetail(detail api.MessageDetail) {
	printDetail(u.out, detail)
}

func (u *consoleUI) SetLoading(bool) {}

func (u *consoleUI) ShowLogin() {
	fmt.Fprintln(u.errOut, "Not logged in. Run 'libruscli login'.")
}

func (u *consoleUI) Toast(message string, _ policy.ToastKind) {
	fmt.Fprintln(u.errOut, message)
}

func (u *consoleUI) isRead(m api.MessageSummary) bool {
	if u.app == nil {
		return m.Read
	}
	return u.app.IsRead(m)
}
