package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"cortex/internal/client/cache"
	"cortex/internal/client/events"
	"cortex/internal/client/session"
	"cortex/internal/domain/models"
)

// revealPoll is how often a reply being revealed is redrawn
const revealPoll = 25 * time.Millisecond

// repl is the line-based front end over a session.Manager
type repl struct {
	mgr         *session.Manager
	prefs       *cache.Preferences
	logger      *slog.Logger
	line        *liner.State
	historyFile string
	out         io.Writer

	theme  theme
	listed []models.Chat // last /list output, for /open <n>

	mu     sync.Mutex
	cancel context.CancelFunc // cancels the request in flight
}

func newREPL(mgr *session.Manager, prefs *cache.Preferences, logger *slog.Logger, historyFile string) *repl {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &repl{
		mgr:         mgr,
		prefs:       prefs,
		logger:      logger,
		line:        line,
		historyFile: historyFile,
		out:         os.Stdout,
		theme:       newTheme(prefs.DarkMode()),
	}
	if f, err := os.Open(historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// Close saves history and restores the terminal
func (r *repl) Close() {
	if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
	r.line.Close()
}

// Run reads commands until /quit, Ctrl+D or ctx is done
func (r *repl) Run(ctx context.Context) error {
	// Ctrl+C outside the prompt cancels the request or stops the reveal
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			r.interrupt()
		}
	}()

	r.printf(r.theme.accent, "CortexAI terminal. Type /help for commands.\n")
	if err := r.mgr.Restore(ctx); err != nil {
		r.printf(r.theme.warning, "Could not reopen the last chat: %v\n", err)
	}
	r.showTranscript()

	for ctx.Err() == nil {
		input, err := r.line.Prompt(r.prompt())
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed terminal
			fmt.Fprintln(r.out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !strings.HasPrefix(input, "/login") {
			// tokens stay out of the history file
			r.line.AppendHistory(input)
		}

		if !strings.HasPrefix(input, "/") {
			r.send(ctx, input)
			continue
		}

		name, args := parseCommand(input)
		if name == "quit" || name == "q" || name == "exit" {
			return nil
		}
		if err := r.dispatch(ctx, name, args); err != nil {
			r.printf(r.theme.err, "[Error] %v\n", err)
		}
	}
	return nil
}

func (r *repl) prompt() string {
	st := r.mgr.State()
	label := "new chat"
	if st.ChatID != "" {
		label = st.Title
	}
	if mode := models.ModeName(st.Mode); mode != "" {
		label += " · " + mode
	}
	// liner measures the prompt itself, so it stays unstyled
	return fmt.Sprintf("[%s] > ", label)
}

func (r *repl) dispatch(ctx context.Context, name, args string) error {
	switch name {
	case "help", "h":
		r.help()
	case "new":
		r.mgr.NewChat()
		r.printf(r.theme.info, "Started a new chat.\n")
	case "list", "ls":
		return r.list(ctx)
	case "open":
		return r.open(ctx, args)
	case "show":
		r.showTranscript()
	case "retry":
		return r.retry(ctx, args)
	case "edit":
		return r.edit(ctx, args)
	case "like", "dislike":
		msg, err := pickMessage(r.mgr.State().Messages, args, models.RoleAssistant)
		if err != nil {
			return err
		}
		if name == "like" {
			return r.mgr.Like(msg.ID)
		}
		return r.mgr.Dislike(msg.ID)
	case "feedback":
		return r.feedback(args)
	case "copy":
		msg, err := pickMessage(r.mgr.State().Messages, args, models.RoleAssistant)
		if err != nil {
			return err
		}
		if err := r.mgr.Copy(msg.ID); err != nil {
			return err
		}
		r.printf(r.theme.info, "Copied.\n")
	case "fav":
		return r.favorite(ctx, args)
	case "rename":
		return r.rename(ctx, args)
	case "mode":
		return r.mode(ctx, args)
	case "deep":
		on := args != "off"
		r.mgr.SetDeepSearch(on)
		r.printf(r.theme.info, "Deep search %s.\n", onOff(on))
	case "delete", "rm":
		return r.delete(ctx, args)
	case "stop":
		r.mgr.StopGeneration()
	case "login":
		err := r.withCancel(ctx, func(ctx context.Context) error {
			return r.mgr.Login(ctx, args)
		})
		if err != nil {
			return err
		}
		r.printf(r.theme.info, "Signed in.\n")
	case "logout":
		if err := r.mgr.Logout(); err != nil {
			return err
		}
		r.printf(r.theme.info, "Signed out. Chats stay in the local cache.\n")
	case "dark":
		dark := !r.prefs.DarkMode()
		r.prefs.SetDarkMode(dark)
		r.theme = newTheme(dark)
		r.printf(r.theme.info, "Dark mode %s.\n", onOff(dark))
	default:
		return fmt.Errorf("unknown command /%s, try /help", name)
	}
	return nil
}

func (r *repl) send(ctx context.Context, text string) {
	before := len(r.mgr.State().Messages)
	err := r.withCancel(ctx, func(ctx context.Context) error {
		return r.mgr.Send(ctx, text)
	})
	if errors.Is(err, session.ErrBusy) || errors.Is(err, session.ErrEmptyMessage) {
		r.printf(r.theme.warning, "%v\n", err)
		return
	}
	r.follow(before)
	if err != nil {
		r.logger.Debug("send finished with error", "error", err)
	}
}

func (r *repl) retry(ctx context.Context, args string) error {
	msgs := r.mgr.State().Messages
	target, err := pickMessage(msgs, args, models.RoleAssistant)
	if err != nil {
		return err
	}
	before := indexOf(msgs, target.ID)
	err = r.withCancel(ctx, func(ctx context.Context) error {
		return r.mgr.Retry(ctx, target.ID)
	})
	r.follow(before)
	return ignoreReplyError(err)
}

func (r *repl) edit(ctx context.Context, args string) error {
	ref, text, _ := strings.Cut(args, " ")
	msgs := r.mgr.State().Messages
	target, err := pickMessage(msgs, ref, models.RoleUser)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		r.printf(r.theme.info, "Edit cancelled.\n")
		return nil
	}
	before := indexOf(msgs, target.ID) + 1
	err = r.withCancel(ctx, func(ctx context.Context) error {
		return r.mgr.Edit(ctx, target.ID, text)
	})
	r.follow(before)
	return ignoreReplyError(err)
}

func (r *repl) feedback(args string) error {
	ref, rest, _ := strings.Cut(args, " ")
	msg, err := pickMessage(r.mgr.State().Messages, ref, models.RoleAssistant)
	if err != nil {
		return err
	}
	reasons, comment := parseFeedback(rest)
	if err := r.mgr.SubmitFeedback(session.Feedback{MessageID: msg.ID, Reasons: reasons, Comment: comment}); err != nil {
		if errors.Is(err, session.ErrEmptyFeedback) {
			return fmt.Errorf("%w (reasons: %s)", err, strings.Join(session.FeedbackReasons, ", "))
		}
		return err
	}
	r.printf(r.theme.info, "Thanks for the feedback.\n")
	return nil
}

func (r *repl) list(ctx context.Context) error {
	r.listed = r.mgr.ListChats(ctx)
	if len(r.listed) == 0 {
		r.printf(r.theme.info, "No chats yet.\n")
		return nil
	}
	active := r.mgr.State().ChatID
	for i, c := range r.listed {
		marker := " "
		if c.ID == active {
			marker = ">"
		}
		star := " "
		if c.IsFavorite {
			star = "★"
		}
		line := fmt.Sprintf("%s %2d. %s %s", marker, i+1, star, c.Title)
		if mode := models.ModeName(c.Mode); mode != "" {
			line += r.theme.info.Render("  [" + mode + "]")
		}
		fmt.Fprintln(r.out, line+r.theme.info.Render("  "+c.LastActivity().Local().Format("Jan 2 15:04")))
	}
	return nil
}

func (r *repl) open(ctx context.Context, args string) error {
	id, err := r.chatRef(args, false)
	if err != nil {
		return err
	}
	if err := r.mgr.Hydrate(ctx, id); err != nil {
		return err
	}
	r.showTranscript()
	return nil
}

func (r *repl) favorite(ctx context.Context, args string) error {
	id, err := r.chatRef(args, true)
	if err != nil {
		return err
	}
	fav, err := r.mgr.ToggleFavorite(ctx, id)
	if err != nil {
		return err
	}
	if fav {
		r.printf(r.theme.info, "Added to favorites.\n")
	} else {
		r.printf(r.theme.info, "Removed from favorites.\n")
	}
	return nil
}

func (r *repl) rename(ctx context.Context, args string) error {
	id := r.mgr.State().ChatID
	if id == "" {
		return errNoActiveChat
	}
	return r.mgr.Rename(ctx, id, args)
}

func (r *repl) mode(ctx context.Context, args string) error {
	if args == "" {
		current := models.ModeName(r.mgr.State().Mode)
		for _, m := range models.Modes {
			marker := " "
			if m == current {
				marker = ">"
			}
			fmt.Fprintf(r.out, "%s %s\n", marker, m)
		}
		r.printf(r.theme.info, "Use /mode <name> or /mode none.\n")
		return nil
	}

	var mode *string
	if !strings.EqualFold(args, "none") {
		name, ok := matchMode(args)
		if !ok {
			return fmt.Errorf("%w: %s", session.ErrUnknownMode, args)
		}
		mode = &name
	}
	if err := r.mgr.SetMode(ctx, mode); err != nil {
		return err
	}
	r.printf(r.theme.info, "Mode: %s\n", orNone(models.ModeName(mode)))
	return nil
}

func (r *repl) delete(ctx context.Context, args string) error {
	id, err := r.chatRef(args, true)
	if err != nil {
		return err
	}
	if err := r.mgr.Delete(ctx, id); err != nil {
		return err
	}
	r.printf(r.theme.info, "Chat deleted.\n")
	return nil
}

// chatRef resolves a /list number or a chat id. With allowActive set an
// empty argument means the active chat.
func (r *repl) chatRef(arg string, allowActive bool) (string, error) {
	if arg == "" {
		if id := r.mgr.State().ChatID; allowActive && id != "" {
			return id, nil
		}
		return "", errors.New("which chat? give a number from /list or an id")
	}
	if n, ok := parseIndex(arg); ok {
		if n < 1 || n > len(r.listed) {
			return "", fmt.Errorf("no chat #%d in the last /list", n)
		}
		return r.listed[n-1].ID, nil
	}
	return arg, nil
}

// follow prints the reply that appears after index before, redrawing it
// while it is being revealed.
func (r *repl) follow(before int) {
	ticker := time.NewTicker(revealPoll)
	defer ticker.Stop()

	var id, shown string
	for {
		st := r.mgr.State()
		reply := lastReply(st.Messages, before)
		if reply == nil {
			return
		}
		if id == "" {
			id = reply.ID
			fmt.Fprint(r.out, r.theme.assistant.Render("CortexAI")+" ")
		}
		if strings.HasPrefix(reply.Content, shown) {
			fmt.Fprint(r.out, reply.Content[len(shown):])
			shown = reply.Content
		}
		if st.StreamingID != id {
			fmt.Fprintln(r.out)
			return
		}
		<-ticker.C
	}
}

func (r *repl) showTranscript() {
	st := r.mgr.State()
	if st.ChatID == "" && len(st.Messages) == 0 {
		return
	}
	for i, m := range st.Messages {
		label := r.theme.user.Render("You")
		if m.Role == models.RoleAssistant {
			label = r.theme.assistant.Render("CortexAI")
		}
		suffix := ""
		switch m.Feedback {
		case models.FeedbackLike:
			suffix = r.theme.info.Render(" (+1)")
		case models.FeedbackDislike:
			suffix = r.theme.info.Render(" (-1)")
		}
		fmt.Fprintf(r.out, "%s %s %s%s\n", r.theme.info.Render(fmt.Sprintf("[%d]", i+1)), label, m.Content, suffix)
	}
}

// withCancel runs fn with a context Ctrl+C can cancel
func (r *repl) withCancel(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()
	return fn(ctx)
}

func (r *repl) interrupt() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		r.printf(r.theme.warning, "\n[Cancelled]\n")
		return
	}
	if r.mgr.State().StreamingID != "" {
		r.mgr.StopGeneration()
	}
}

func (r *repl) onEvent(e events.Event) {
	r.logger.Debug("session event", "kind", string(e.Kind), "chat_id", e.ChatID)
	if e.Kind == events.ChatListRefresh && e.ChatID == "" {
		// the watcher saw another process change the cache
		r.listed = nil
	}
}

func (r *repl) help() {
	cmds := [][2]string{
		{"/new", "start a new chat"},
		{"/list", "list chats"},
		{"/open <n|id>", "open a chat"},
		{"/show", "print the transcript"},
		{"/retry [n]", "regenerate a reply (default: the last one)"},
		{"/edit <n> <text>", "edit your message n and regenerate"},
		{"/like [n], /dislike [n]", "rate a reply"},
		{"/feedback <n> <reason,...> [comment]", "report a problem with a reply"},
		{"/copy [n]", "copy a reply to the clipboard"},
		{"/fav [n|id]", "toggle favorite"},
		{"/rename <title>", "rename the active chat"},
		{"/mode [name|none]", "show or set the assistant mode"},
		{"/deep [on|off]", "toggle deep search"},
		{"/delete [n|id]", "delete a chat"},
		{"/stop", "stop the reply being revealed (or Ctrl+C)"},
		{"/login <token>", "sign in with a session token"},
		{"/logout", "sign out, keeping the local cache"},
		{"/dark", "toggle dark mode"},
		{"/quit", "exit"},
	}
	for _, c := range cmds {
		fmt.Fprintf(r.out, "  %-40s %s\n", r.theme.accent.Render(c[0]), c[1])
	}
}

// printf styles the text between any leading and trailing newlines
func (r *repl) printf(style lipgloss.Style, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	body := strings.Trim(msg, "\n")
	if body == "" {
		fmt.Fprint(r.out, msg)
		return
	}
	lead := msg[:strings.Index(msg, body)]
	trail := msg[len(lead)+len(body):]
	fmt.Fprint(r.out, lead+style.Render(body)+trail)
}

// ignoreReplyError keeps failures that the transcript already shows off
// the error line
func ignoreReplyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrMessageNotFound), errors.Is(err, session.ErrWrongRole), errors.Is(err, session.ErrBusy):
		return err
	default:
		return nil
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
