// Package memory is an in-process implementation of the persistence gateway.
// It mirrors the Postgres semantics closely enough to run the service
// without a database and to exercise the event router in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"teamchat-service/internal/models"
	"teamchat-service/internal/repositories"
)

type dmKey struct {
	teamID, user1, user2 int
}

type presenceKey struct {
	userID, teamID int
}

// Store holds every table in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	now func() time.Time

	users          map[int]models.User
	teams          map[int]models.Team
	teamMembers    map[int]map[int]struct{}
	channels       map[int]models.Channel
	channelMembers map[int]map[int]struct{}
	directChannels map[dmKey]int
	dmByChannel    map[int]dmKey
	messages       map[int]models.Message
	messageFiles   map[int][]int
	files          map[int]models.FileAttachment
	presences      map[presenceKey]models.Presence

	nextID int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		now:            func() time.Time { return time.Now().UTC() },
		users:          map[int]models.User{},
		teams:          map[int]models.Team{},
		teamMembers:    map[int]map[int]struct{}{},
		channels:       map[int]models.Channel{},
		channelMembers: map[int]map[int]struct{}{},
		directChannels: map[dmKey]int{},
		dmByChannel:    map[int]dmKey{},
		messages:       map[int]models.Message{},
		messageFiles:   map[int][]int{},
		files:          map[int]models.FileAttachment{},
		presences:      map[presenceKey]models.Presence{},
	}
}

// Set exposes the store through the gateway interfaces.
func (s *Store) Set() repositories.Set {
	return repositories.Set{
		Users:     userRepo{s},
		Teams:     teamRepo{s},
		Channels:  channelRepo{s},
		Messages:  messageRepo{s},
		Presences: presenceRepo{s},
	}
}

func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

// AddUser seeds a user.
func (s *Store) AddUser(username string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := models.User{ID: s.id(), Username: username}
	s.users[user.ID] = user
	return user
}

// AddTeam seeds a team with the given members.
func (s *Store) AddTeam(name string, memberIDs ...int) models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	team := models.Team{ID: s.id(), Name: name, CreatedAt: s.now()}
	s.teams[team.ID] = team
	s.teamMembers[team.ID] = map[int]struct{}{}
	for _, id := range memberIDs {
		s.teamMembers[team.ID][id] = struct{}{}
	}
	return team
}

// AddAttachment seeds file metadata.
func (s *Store) AddAttachment(uploadedBy int, filename, contentType string, size int64) models.FileAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	file := models.FileAttachment{
		ID:               s.id(),
		FilePath:         "uploads/" + filename,
		OriginalFilename: filename,
		ContentType:      contentType,
		Size:             size,
		UploadedBy:       uploadedBy,
		CreatedAt:        s.now(),
	}
	s.files[file.ID] = file
	return file
}

// MessageCount reports how many messages a channel holds.
func (s *Store) MessageCount(channelID int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(lo.Filter(lo.Values(s.messages), func(m models.Message, _ int) bool {
		return m.ChannelID == channelID
	}))
}

// DirectChannelCount reports how many DM channel rows exist.
func (s *Store) DirectChannelCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.directChannels)
}

func (s *Store) usersOf(set map[int]struct{}) []models.User {
	ids := lo.Keys(set)
	sort.Ints(ids)
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			users = append(users, u)
		}
	}
	return users
}

func (s *Store) hydrate(m models.Message) models.Message {
	out := m.Clone()
	out.Sender = s.users[m.SenderID].Username
	out.TeamID = s.channels[m.ChannelID].TeamID
	out.Files = nil
	for _, fileID := range s.messageFiles[m.ID] {
		if f, ok := s.files[fileID]; ok {
			out.Files = append(out.Files, f)
		}
	}
	return out
}

type userRepo struct{ s *Store }

func (r userRepo) GetUser(_ context.Context, userID int) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrUserNotFound
	}
	return user, nil
}

type teamRepo struct{ s *Store }

func (r teamRepo) GetTeam(_ context.Context, teamID int) (models.Team, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	team, ok := r.s.teams[teamID]
	if !ok {
		return models.Team{}, repositories.ErrTeamNotFound
	}
	return team, nil
}

func (r teamRepo) ListTeamsForUser(_ context.Context, userID int) ([]models.Team, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var teams []models.Team
	for id, members := range r.s.teamMembers {
		if _, ok := members[userID]; ok {
			teams = append(teams, r.s.teams[id])
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

func (r teamRepo) IsMember(_ context.Context, teamID int, userID int) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.teamMembers[teamID][userID]
	return ok, nil
}

func (r teamRepo) ListMembers(_ context.Context, teamID int) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.usersOf(r.s.teamMembers[teamID]), nil
}

func (r teamRepo) AddMember(_ context.Context, teamID int, userID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teams[teamID]; !ok {
		return repositories.ErrTeamNotFound
	}
	if _, ok := r.s.users[userID]; !ok {
		return repositories.ErrUserNotFound
	}
	r.s.teamMembers[teamID][userID] = struct{}{}
	for id, ch := range r.s.channels {
		if ch.TeamID == teamID && !ch.IsDirectMessage {
			r.s.channelMembers[id][userID] = struct{}{}
		}
	}
	return nil
}

type channelRepo struct{ s *Store }

func (r channelRepo) GetChannel(_ context.Context, channelID int) (models.Channel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ch, ok := r.s.channels[channelID]
	if !ok {
		return models.Channel{}, repositories.ErrChannelNotFound
	}
	return ch, nil
}

func (r channelRepo) ListChannelsForUser(_ context.Context, userID int) ([]models.Channel, error) {
	return r.list(func(ch models.Channel) bool {
		_, ok := r.s.channelMembers[ch.ID][userID]
		return ok
	}), nil
}

func (r channelRepo) ListTeamChannels(_ context.Context, teamID int, userID int) ([]models.Channel, error) {
	return r.list(func(ch models.Channel) bool {
		_, ok := r.s.channelMembers[ch.ID][userID]
		return ok && ch.TeamID == teamID
	}), nil
}

func (r channelRepo) list(keep func(models.Channel) bool) []models.Channel {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Channel
	for _, ch := range r.s.channels {
		if keep(ch) {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r channelRepo) IsMember(_ context.Context, channelID int, userID int) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.channelMembers[channelID][userID]
	return ok, nil
}

func (r channelRepo) CreateChannel(_ context.Context, teamID int, name, description string) (models.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teams[teamID]; !ok {
		return models.Channel{}, repositories.ErrTeamNotFound
	}
	ch := models.Channel{ID: r.s.id(), TeamID: teamID, Name: name, Description: description, CreatedAt: r.s.now()}
	r.s.channels[ch.ID] = ch
	r.s.channelMembers[ch.ID] = map[int]struct{}{}
	for userID := range r.s.teamMembers[teamID] {
		r.s.channelMembers[ch.ID][userID] = struct{}{}
	}
	return ch, nil
}

func (r channelRepo) CreateOrGetDirectChannel(_ context.Context, teamID int, userID int, otherID int) (models.Channel, bool, error) {
	if userID == otherID {
		return models.Channel{}, false, repositories.ErrSelfDirectChat
	}
	key := dmKey{teamID: teamID, user1: min(userID, otherID), user2: max(userID, otherID)}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id, ok := r.s.directChannels[key]; ok {
		return r.s.channels[id], false, nil
	}
	if _, ok := r.s.teams[teamID]; !ok {
		return models.Channel{}, false, repositories.ErrTeamNotFound
	}
	ch := models.Channel{
		ID:              r.s.id(),
		TeamID:          teamID,
		Name:            dmName(key),
		IsDirectMessage: true,
		CreatedAt:       r.s.now(),
	}
	r.s.channels[ch.ID] = ch
	r.s.channelMembers[ch.ID] = map[int]struct{}{key.user1: {}, key.user2: {}}
	r.s.directChannels[key] = ch.ID
	r.s.dmByChannel[ch.ID] = key
	return ch, true, nil
}

func (r channelRepo) ListInteractedUsers(_ context.Context, userID int) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	set := map[int]struct{}{}
	for key := range r.s.directChannels {
		switch userID {
		case key.user1:
			set[key.user2] = struct{}{}
		case key.user2:
			set[key.user1] = struct{}{}
		}
	}
	return r.s.usersOf(set), nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) CreateMessage(_ context.Context, in models.NewMessage) (models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.channels[in.ChannelID]; !ok {
		return models.Message{}, repositories.ErrChannelNotFound
	}
	msg := models.Message{
		ID:          r.s.id(),
		ChannelID:   in.ChannelID,
		SenderID:    in.SenderID,
		Content:     in.Content,
		ReplyToID:   in.ReplyToID,
		Reactions:   models.Reactions{},
		LinkPreview: in.LinkPreview,
		IsForwarded: in.IsForwarded,
		CreatedAt:   r.s.now(),
	}
	r.s.messages[msg.ID] = msg.Clone()
	r.s.messageFiles[msg.ID] = lo.Filter(lo.Uniq(in.FileIDs), func(id int, _ int) bool {
		_, ok := r.s.files[id]
		return ok
	})
	return r.s.hydrate(msg), nil
}

func (r messageRepo) GetMessage(_ context.Context, messageID int) (models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	msg, ok := r.s.messages[messageID]
	if !ok {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	return r.s.hydrate(msg), nil
}

func (r messageRepo) ListChannelMessages(_ context.Context, channelID int, limit int) ([]models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Message
	for _, m := range r.s.messages {
		if m.ChannelID == channelID {
			out = append(out, r.s.hydrate(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r messageRepo) EditMessage(_ context.Context, messageID int, senderID int, content string) (models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[messageID]
	if !ok {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	if msg.SenderID != senderID {
		return models.Message{}, repositories.ErrNotMessageSender
	}
	now := r.s.now()
	msg = msg.Clone()
	msg.EditHistory = append(msg.EditHistory, models.EditRecord{Content: msg.Content, EditedAt: now})
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &now
	r.s.messages[messageID] = msg
	return r.s.hydrate(msg), nil
}

func (r messageRepo) DeleteMessage(_ context.Context, messageID int, senderID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[messageID]
	if !ok || msg.SenderID != senderID {
		return repositories.ErrMessageNotFound
	}
	delete(r.s.messages, messageID)
	delete(r.s.messageFiles, messageID)
	for id, m := range r.s.messages {
		if m.ReplyToID != nil && *m.ReplyToID == messageID {
			m = m.Clone()
			m.ReplyToID = nil
			r.s.messages[id] = m
		}
	}
	return nil
}

func (r messageRepo) SetReaction(_ context.Context, messageID int, username string, reaction string) (models.Message, error) {
	return r.update(messageID, func(m *models.Message) {
		if m.Reactions == nil {
			m.Reactions = models.Reactions{}
		}
		m.Reactions[username] = reaction
	})
}

func (r messageRepo) PinMessage(_ context.Context, messageID int) (models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[messageID]
	if !ok {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	for id, m := range r.s.messages {
		if m.ChannelID == msg.ChannelID && m.IsPinned && id != messageID {
			m.IsPinned = false
			r.s.messages[id] = m
		}
	}
	msg.IsPinned = true
	r.s.messages[messageID] = msg
	return r.s.hydrate(msg), nil
}

func (r messageRepo) UnpinMessage(_ context.Context, messageID int) (models.Message, error) {
	return r.update(messageID, func(m *models.Message) { m.IsPinned = false })
}

func (r messageRepo) update(messageID int, fn func(*models.Message)) (models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[messageID]
	if !ok {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	msg = msg.Clone()
	fn(&msg)
	r.s.messages[messageID] = msg
	return r.s.hydrate(msg), nil
}

func (r messageRepo) GetAttachments(_ context.Context, fileIDs []int) ([]models.FileAttachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []models.FileAttachment{}
	for _, id := range lo.Uniq(fileIDs) {
		if f, ok := r.s.files[id]; ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type presenceRepo struct{ s *Store }

func (r presenceRepo) SetPresence(_ context.Context, userID int, teamID int, online bool) (models.Presence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := models.Presence{
		UserID:   userID,
		Username: r.s.users[userID].Username,
		TeamID:   teamID,
		Online:   online,
		LastSeen: r.s.now(),
	}
	r.s.presences[presenceKey{userID: userID, teamID: teamID}] = p
	return p, nil
}

func (r presenceRepo) ListTeamPresences(_ context.Context, teamID int) ([]models.Presence, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := r.s.usersOf(r.s.teamMembers[teamID])
	return lo.Map(users, func(u models.User, _ int) models.Presence {
		if p, ok := r.s.presences[presenceKey{userID: u.ID, teamID: teamID}]; ok {
			return p
		}
		return models.Presence{UserID: u.ID, Username: u.Username, TeamID: teamID, LastSeen: time.Unix(0, 0).UTC()}
	}), nil
}

func dmName(key dmKey) string {
	return fmt.Sprintf("dm-%d-%d", key.user1, key.user2)
}
