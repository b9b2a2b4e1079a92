/*
Package chat contains the core logic of the chat server.

This file defines the Dispatcher, which routes each decoded envelope from an
authenticated session: chat and private messages, typing and file relays,
and the slash-command table including moderation. Muted users have their
chat and private messages silently dropped (with a notice to the muted user
only); action lines and typing indicators are exempt.
*/
package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dischat/internal/app/store"
	"dischat/internal/pkg/errs"
	"dischat/internal/pkg/logx"
)

// Dispatcher reacts to inbound envelopes by mutating the registry, writing
// the chat log, and asking the router to deliver messages.
type Dispatcher struct {
	reg    *Registry
	router *Router
	creds  *store.CredentialStore
	bans   *store.BanStore
	log    *store.ChatLog

	// adminPassword is the server-wide admin secret configured at start.
	adminPassword string

	logger zerolog.Logger
}

// NewDispatcher constructs a Dispatcher over the shared server state.
func NewDispatcher(reg *Registry, router *Router, creds *store.CredentialStore, bans *store.BanStore, log *store.ChatLog, adminPassword string) *Dispatcher {
	return &Dispatcher{
		reg:           reg,
		router:        router,
		creds:         creds,
		bans:          bans,
		log:           log,
		adminPassword: adminPassword,
		logger:        logx.Logger().With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch handles one decoded envelope from an authenticated session.
// It never returns an error to the read loop; failures become error
// envelopes scoped to the sender.
func (d *Dispatcher) Dispatch(s *Session, m *Message) {
	switch m.Type {
	case TypeChat:
		d.handleChat(s, m)
	case TypePrivate:
		d.handlePrivate(s, m)
	case TypeTyping:
		d.router.Global(NewTyping(s.Name(), m.Status), s.Name())
	case TypeFile:
		d.handleFile(s, m)
	case TypeCommand:
		d.dispatchCommand(s, m.Text)
	default:
		// Login/register after authentication fall through here.
		s.SendError(errs.NewError(errs.ErrUnknownType, string(m.Type)))
	}
}

// handleChat broadcasts a chat message to the sender's current room, or to
// everyone when the sender is roomless.
func (d *Dispatcher) handleChat(s *Session, m *Message) {
	sender := s.Name()

	if d.reg.IsMuted(sender) {
		s.SendSystem("You are muted.")
		return
	}

	room, inRoom := d.reg.RoomOf(sender)
	out := NewChat(sender, room, m.Text)

	if inRoom {
		d.router.Room(room, out, sender)
	} else {
		d.router.Global(out, sender)
	}

	d.logEvent(store.EventChat, sender, room, "", m.Text)
}

// handlePrivate delivers a direct message to exactly the named recipient,
// echoing a copy to the sender so clients can render the thread.
func (d *Dispatcher) handlePrivate(s *Session, m *Message) {
	sender := s.Name()

	if d.reg.IsMuted(sender) {
		s.SendSystem("You are muted.")
		return
	}

	pm := NewPrivate(sender, m.Target, m.Text)
	if err := d.router.User(m.Target, pm); err != nil {
		s.SendError(err)
		return
	}

	s.Send(pm)
	d.logEvent(store.EventPrivate, sender, "", m.Target, m.Text)
}

// handleFile relays file metadata to the sender's room or a named
// recipient. The server never carries payload bytes.
func (d *Dispatcher) handleFile(s *Session, m *Message) {
	sender := s.Name()
	notice := NewFileNotice(sender, m.Name, m.Size, m.Target)

	if m.Target == "" || m.Target == "All" {
		room, inRoom := d.reg.RoomOf(sender)
		notice.Room = room
		if inRoom {
			d.router.Room(room, notice, sender)
		} else {
			d.router.Global(notice, sender)
		}
	} else if err := d.router.User(m.Target, notice); err != nil {
		s.SendError(err)
		return
	}

	d.logEvent(store.EventFile, sender, "", m.Target, fmt.Sprintf("%s (%d bytes)", m.Name, m.Size))
}

// dispatchCommand parses a slash line and runs the matching command.
// Unknown commands answer the sender only and never disturb the read loop.
func (d *Dispatcher) dispatchCommand(s *Session, line string) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	if parts[0] == "" {
		return
	}

	cmd := strings.ToLower(parts[0])
	rest := ""
	if len(parts) > 1 {
		rest = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/help", "/?":
		d.cmdHelp(s)
	case "/list", "/users":
		d.cmdList(s)
	case "/whoami":
		s.SendSystem("You are: " + s.Name())
	case "/me":
		d.cmdMe(s, rest)
	case "/create":
		d.cmdJoinRoom(s, rest, true)
	case "/join":
		d.cmdJoinRoom(s, rest, false)
	case "/leave":
		d.cmdLeave(s)
	case "/rooms":
		d.cmdRooms(s)
	case "/admin":
		d.cmdAdmin(s, rest)
	case "/kick":
		d.cmdKick(s, rest)
	case "/ban":
		d.cmdBan(s, rest)
	case "/unban":
		d.cmdUnban(s, rest)
	case "/listbans":
		d.cmdListBans(s)
	case "/mute":
		d.cmdMute(s, rest)
	case "/unmute":
		d.cmdUnmute(s, rest)
	case "/announce":
		d.cmdAnnounce(s, rest)
	default:
		s.SendError(errs.NewError(errs.ErrUnknownCommand))
	}
}

// requireAdmin gates admin commands. The denial is identical whether the
// command exists or the sender simply lacks the flag, so nothing leaks
// about which accounts hold admin.
func (d *Dispatcher) requireAdmin(s *Session) bool {
	if !s.IsAdmin() {
		s.SendError(errs.NewError(errs.ErrPermissionDenied))
		return false
	}
	return true
}

func (d *Dispatcher) cmdHelp(s *Session) {
	help := strings.Join([]string{
		"AVAILABLE COMMANDS",
		"/help or /? - Show this help",
		"/list or /users - Show online users",
		"/whoami - Show your username",
		"/me <action> - Send action message",
		"/create <room> [password] - Create room",
		"/join <room> [password] - Join room",
		"/leave - Leave current room",
		"/rooms - List all rooms",
		"/admin <password> - Become admin",
	}, "\n")

	if s.IsAdmin() {
		help += "\n" + strings.Join([]string{
			"ADMIN COMMANDS",
			"/kick <user> - Kick user",
			"/ban <user> - Ban user",
			"/unban <user> - Unban user",
			"/listbans - List banned users",
			"/mute <user> <seconds> - Mute user",
			"/unmute <user> - Unmute user",
			"/announce <message> - Send announcement",
		}, "\n")
	}

	s.SendSystem(help)
}

func (d *Dispatcher) cmdList(s *Session) {
	users := d.reg.Users()
	listing := "(none)"
	if len(users) > 0 {
		listing = strings.Join(users, ", ")
	}
	s.SendSystem("Online users: " + listing)
}

func (d *Dispatcher) cmdMe(s *Session, action string) {
	if action == "" {
		s.SendError(errs.NewError(errs.ErrBadCommandArgs, "/me <action>"))
		return
	}

	sender := s.Name()
	room, inRoom := d.reg.RoomOf(sender)
	out := NewAction(sender, room, action)

	if inRoom {
		d.router.Room(room, out, sender)
	} else {
		d.router.Global(out, sender)
	}

	d.logEvent(store.EventAction, sender, room, "", action)
}

// cmdJoinRoom implements both /create and /join. Both resolve to the
// registry's join-with-implicit-creation; /create additionally reports
// whether the room actually came into being.
func (d *Dispatcher) cmdJoinRoom(s *Session, rest string, create bool) {
	usage := "/join <room> [password]"
	if create {
		usage = "/create <room> [password]"
	}

	args := strings.SplitN(rest, " ", 2)
	if args[0] == "" {
		s.SendError(errs.NewError(errs.ErrBadCommandArgs, usage))
		return
	}

	roomName := args[0]
	password := ""
	if len(args) > 1 {
		password = strings.TrimSpace(args[1])
	}

	sender := s.Name()
	prevRoom, created, err := d.reg.JoinRoom(sender, roomName, password)
	if err != nil {
		s.SendError(err)
		return
	}

	if prevRoom != "" && prevRoom != roomName {
		d.router.Room(prevRoom, NewSystem(fmt.Sprintf("%s left room %q.", sender, prevRoom)))
	}

	switch {
	case created && create:
		notice := fmt.Sprintf("Created room %q", roomName)
		if password != "" {
			notice += " (password protected)"
		}
		s.SendSystem(notice)
		d.router.Global(NewSystem(fmt.Sprintf("%s created room %q", sender, roomName)), sender)
	case created:
		s.SendSystem(fmt.Sprintf("You joined room %q.", roomName))
	default:
		s.SendSystem(fmt.Sprintf("You joined room %q.", roomName))
		d.router.Room(roomName, NewSystem(fmt.Sprintf("%s joined room %q.", sender, roomName)), sender)
	}

	d.router.PushUserList()
	d.logEvent(store.EventRoom, sender, roomName, "", "joined")
}

func (d *Dispatcher) cmdLeave(s *Session) {
	sender := s.Name()
	room, ok := d.reg.LeaveRoom(sender)
	if !ok {
		s.SendError(errs.NewError(errs.ErrNotInRoom))
		return
	}

	s.SendSystem(fmt.Sprintf("You left room %q.", room))
	d.router.Room(room, NewSystem(fmt.Sprintf("%s left room %q.", sender, room)))
	d.router.PushUserList()
	d.logEvent(store.EventRoom, sender, room, "", "left")
}

func (d *Dispatcher) cmdRooms(s *Session) {
	rooms := d.reg.RoomNames()
	listing := "(none)"
	if len(rooms) > 0 {
		listing = strings.Join(rooms, ", ")
	}
	s.SendSystem("Available rooms: " + listing)
}

func (d *Dispatcher) cmdAdmin(s *Session, password string) {
	if password != d.adminPassword {
		s.SendError(errs.NewError(errs.ErrAdminPassword))
		return
	}

	s.SetAdmin(true)
	d.router.Global(NewSystem(fmt.Sprintf("%s is now an admin.", s.Name())))
	d.logEvent(store.EventAdmin, s.Name(), "", "", "admin granted")
}

func (d *Dispatcher) cmdKick(s *Session, target string) {
	if !d.requireAdmin(s) {
		return
	}
	if target == "" {
		s.SendError(errs.NewError(errs.ErrBadCommandArgs, "/kick <user>"))
		return
	}

	targetSession, online := d.reg.Session(target)
	if !online {
		s.SendError(errs.NewError(errs.ErrUserNotFound, target))
		return
	}

	targetSession.Kick("You were kicked by an admin.")
	d.router.Global(NewSystem(fmt.Sprintf("%s was kicked by %s.", target, s.Name())))
	d.logEvent(store.EventModerate, s.Name(), "", target, "kick")
}

func (d *Dispatcher) cmdBan(s *Session, target string) {
	if !d.requireAdmin(s) {
		return
	}
	if target == "" {
		s.SendError(errs.NewError(errs.ErrBadCommandArgs, "/ban <user>"))
		return
	}

	if err := d.bans.Ban(target); err != nil {
		// Persistence failures surface on the admin channel only.
		d.logger.Error().Err(err).Str("target", target).Msg("Failed to persist ban list")
		s.SendSystem("Warning: ban list could not be persisted.")
	}

	d.router.Global(NewSystem(fmt.Sprintf("%s was banned by %s.", target, s.Name())))
	d.logEvent(store.EventModerate, s.Name(), "", target, "ban")

	if targetSession, online := d.reg.Session(target); online {
		targetSession.Kick("You were banned by an admin.")
	}
}

func (d *Dispatcher) cmdUnban(s *Session, target string) {
	if !d.requireAdmin(s) {
		return
	}
	if target == "" {
		s.SendError(errs.NewError(errs.ErrBadCommandArgs, "/unban <user>"))
		return
	}

	removed, err := d.bans.Unban(target)
	if err != nil {
		d.logger.Error().Err(err).Str("target", target).Msg("Failed to persist ban list")
		s.SendSystem("Warning: ban list could not be persisted.")
		return
	}
	if !removed {
		s.SendError(errs.NewError(errs.ErrUserNotBanned, target))
		return
	}

	d.router.Global(NewSystem(fmt.Sprintf("%s was unbanned by %s.", target, s.Name())))
	d.logEvent(store.EventModerate, s.Name(), "", target, "unban")
}

func (d *Dispatcher) cmdListBans(s *Session) {
	if !d.requireAdmin(s) {
		return
	}

	banned := d.bans.List()
	listing := "(none)"
	if len(banned) > 0 {
		listing = strings.Join(banned, ", ")
	}
	s.SendSystem("Banned users: " + listing)
}

// maxMuteSeconds bounds /mute so the expiry arithmetic cannot overflow.
const maxMuteSeconds = 365 * 24 * 60 * 60

func (d *Dispatcher) cmdMute(s *Session, rest string) {
	if !d.requireAdmin(s) {
		return
	}

	args := strings.Fields(rest)
	if len(args) < 2 {
		s.SendError(errs.NewError(errs.ErrBadCommandArgs, "/mute <user> <seconds>"))
		return
	}

	target := args[0]
	seconds, err := strconv.Atoi(args[1])
	if err != nil || seconds <= 0 || seconds > maxMuteSeconds {
		s.SendError(errs.NewError(errs.ErrBadCommandArgs, "/mute <user> <seconds>"))
		return
	}

	if !d.reg.Mute(target, time.Duration(seconds)*time.Second) {
		s.SendError(errs.NewError(errs.ErrUserNotFound, target))
		return
	}

	notice := NewSystem(fmt.Sprintf("You are muted for %d seconds.", seconds))
	if err := d.router.User(target, notice); err != nil {
		d.logger.Debug().Str("target", target).Msg("Mute notice target went offline")
	}

	d.router.Global(NewSystem(fmt.Sprintf("%s was muted by %s for %ds.", target, s.Name(), seconds)))
	d.logEvent(store.EventModerate, s.Name(), "", target, fmt.Sprintf("mute %ds", seconds))
}

func (d *Dispatcher) cmdUnmute(s *Session, target string) {
	if !d.requireAdmin(s) {
		return
	}
	if target == "" {
		s.SendError(errs.NewError(errs.ErrBadCommandArgs, "/unmute <user>"))
		return
	}

	if !d.reg.Unmute(target) {
		s.SendError(errs.NewError(errs.ErrUserNotFound, target))
		return
	}

	if err := d.router.User(target, NewSystem("You are no longer muted.")); err != nil {
		d.logger.Debug().Str("target", target).Msg("Unmute notice target went offline")
	}

	d.router.Global(NewSystem(fmt.Sprintf("%s was unmuted by %s.", target, s.Name())))
	d.logEvent(store.EventModerate, s.Name(), "", target, "unmute")
}

func (d *Dispatcher) cmdAnnounce(s *Session, text string) {
	if !d.requireAdmin(s) {
		return
	}
	if text == "" {
		s.SendError(errs.NewError(errs.ErrBadCommandArgs, "/announce <message>"))
		return
	}

	d.router.Global(NewAnnounce(s.Name(), text))
	d.logEvent(store.EventAnnounce, s.Name(), "", "", text)
}

// logEvent appends to the chat log; failures are already logged inside the
// store and must never reach chat users.
func (d *Dispatcher) logEvent(kind, actor, room, target, text string) {
	if d.log == nil {
		return
	}
	if err := d.log.Append(kind, actor, room, target, text); err != nil {
		d.logger.Debug().Err(err).Str("kind", kind).Msg("Chat log append failed")
	}
}
