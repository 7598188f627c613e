package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"messaging-service/internal/delivery"
	"messaging-service/internal/events"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// clock hands out strictly increasing timestamps so ordering in the fakes is stable.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type conversationStore struct {
	mu     sync.Mutex
	seq    int
	convs  map[string]*models.Conversation
	stale  int
	secure int
}

func newConversationStore() *conversationStore {
	return &conversationStore{convs: map[string]*models.Conversation{}}
}

func (s *conversationStore) lookup(id string) (*models.Conversation, error) {
	if !strings.HasPrefix(id, "conv-") {
		return nil, repositories.ErrInvalidID
	}
	c, ok := s.convs[id]
	if !ok {
		return nil, repositories.ErrConversationNotFound
	}
	return c, nil
}

func (s *conversationStore) Create(_ context.Context, conv models.Conversation) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if samePair(*c, conv) {
			return models.Conversation{}, repositories.ErrConversationExists
		}
	}
	s.seq++
	conv.ID = fmt.Sprintf("conv-%d", s.seq)
	conv.UpdatedAt = conv.CreatedAt
	cp := conv
	s.convs[conv.ID] = &cp
	return conv, nil
}

func samePair(a, b models.Conversation) bool {
	pa, pb := a.Participants(), b.Participants()
	return (pa[0] == pb[0] && pa[1] == pb[1]) || (pa[0] == pb[1] && pa[1] == pb[0])
}

func (s *conversationStore) Get(_ context.Context, id string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(id)
	if err != nil {
		return models.Conversation{}, err
	}
	return *c, nil
}

func (s *conversationStore) FindByPair(_ context.Context, a, b string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	probe := models.NewConversation(a, b)
	for _, c := range s.convs {
		if samePair(*c, probe) {
			return *c, nil
		}
	}
	return models.Conversation{}, repositories.ErrConversationNotFound
}

func (s *conversationStore) RecordMessage(_ context.Context, id, messageID, receiverID string, at time.Time, countUnread bool) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(id)
	if err != nil {
		return models.Conversation{}, err
	}
	c.LastMessageID = messageID
	c.LastMessageAt = at
	c.UpdatedAt = at
	for i := range c.Members {
		c.Members[i].Hidden = false
		if countUnread && c.Members[i].UserID == receiverID {
			c.Members[i].UnreadCount++
		}
	}
	return *c, nil
}

func (s *conversationStore) ResetUnread(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(id)
	if err != nil {
		return err
	}
	if i := c.IndexOf(userID); i >= 0 {
		c.Members[i].UnreadCount = 0
	}
	return nil
}

func (s *conversationStore) SoftDelete(_ context.Context, id string, userIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(id)
	if err != nil {
		return err
	}
	for _, u := range userIDs {
		if i := c.IndexOf(u); i >= 0 {
			cut := at
			c.Members[i].DeletedAt = &cut
			c.Members[i].Hidden = true
			c.Members[i].UnreadCount = 0
		}
	}
	return nil
}

func (s *conversationStore) SetSecure(_ context.Context, id string, expect, secure bool, enabledBy string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secure++
	c, err := s.lookup(id)
	if err != nil {
		return models.Conversation{}, err
	}
	if s.stale > 0 {
		s.stale--
		return models.Conversation{}, repositories.ErrStaleWrite
	}
	if c.IsSecure != expect {
		return models.Conversation{}, repositories.ErrStaleWrite
	}
	c.IsSecure = secure
	c.SecureEnabledBy = enabledBy
	return *c, nil
}

func (s *conversationStore) SetBackground(_ context.Context, id, userID string, url *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(id)
	if err != nil {
		return err
	}
	if i := c.IndexOf(userID); i >= 0 {
		c.Members[i].Background = url
	}
	return nil
}

func (s *conversationStore) SetFriendship(_ context.Context, a, b string, friends bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	probe := models.NewConversation(a, b)
	for _, c := range s.convs {
		if samePair(*c, probe) {
			c.AreFriends = friends
		}
	}
	return nil
}

func (s *conversationStore) ListForUser(_ context.Context, userID string, filter repositories.ConversationFilter) ([]models.Conversation, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversation
	for _, c := range s.convs {
		st, ok := c.StateOf(userID)
		if !ok || st.Hidden || c.LastMessageID == "" {
			continue
		}
		if filter.UnreadOnly && st.UnreadCount == 0 {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	total := int64(len(out))
	return window(out, filter.Skip, filter.Limit), total, nil
}

func (s *conversationStore) SumUnread(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.convs {
		n += c.UnreadFor(userID)
	}
	return n, nil
}

func (s *conversationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(id); err != nil {
		return err
	}
	delete(s.convs, id)
	return nil
}

func (s *conversationStore) snapshot(id string) models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.convs[id]
}

func window[T any](list []T, skip, limit int64) []T {
	if skip >= int64(len(list)) {
		return []T{}
	}
	list = list[skip:]
	if limit > 0 && limit < int64(len(list)) {
		list = list[:limit]
	}
	return list
}

type messageStore struct {
	mu   sync.Mutex
	seq  int
	msgs []*models.Message
}

func (s *messageStore) find(id string) (*models.Message, error) {
	if !strings.HasPrefix(id, "msg-") {
		return nil, repositories.ErrInvalidID
	}
	for _, m := range s.msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, repositories.ErrMessageNotFound
}

func (s *messageStore) Create(_ context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	msg.ID = fmt.Sprintf("msg-%d", s.seq)
	msg.UpdatedAt = msg.CreatedAt
	cp := msg
	s.msgs = append(s.msgs, &cp)
	return msg, nil
}

func (s *messageStore) Get(_ context.Context, id string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.find(id)
	if err != nil {
		return models.Message{}, err
	}
	return *m, nil
}

func (s *messageStore) GetMany(_ context.Context, ids []string) (map[string]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]models.Message{}
	for _, id := range ids {
		if m, err := s.find(id); err == nil {
			out[id] = *m
		}
	}
	return out, nil
}

func (s *messageStore) ListVisible(_ context.Context, conversationID string, after time.Time, skip, limit int64) ([]models.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for i := len(s.msgs) - 1; i >= 0; i-- {
		m := s.msgs[i]
		if m.ConversationID == conversationID && m.CreatedAt.After(after) {
			out = append(out, *m)
		}
	}
	return window(out, skip, limit), int64(len(out)), nil
}

func (s *messageStore) MarkRead(_ context.Context, conversationID, receiverID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgs {
		if m.ConversationID == conversationID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *messageStore) ReplaceContent(_ context.Context, id string, msgType models.MessageType, content models.Content, deleted bool, at time.Time) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.find(id)
	if err != nil {
		return models.Message{}, err
	}
	m.Type, m.Content, m.IsDeleted, m.UpdatedAt = msgType, content, deleted, at
	return *m, nil
}

func (s *messageStore) ListImages(_ context.Context, conversationID string, after time.Time) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for i := len(s.msgs) - 1; i >= 0; i-- {
		m := s.msgs[i]
		if m.ConversationID == conversationID && m.Type == models.MessageImage && !m.IsDeleted && m.CreatedAt.After(after) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *messageStore) ListExpiredMedia(_ context.Context, before time.Time, limit int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.msgs {
		if m.Type.IsMedia() && !m.IsDeleted && m.CreatedAt.Before(before) {
			out = append(out, *m)
		}
	}
	return window(out, 0, limit), nil
}

func (s *messageStore) DeleteByConversation(_ context.Context, conversationID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.msgs[:0]
	var n int64
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	s.msgs = kept
	return n, nil
}

func (s *messageStore) CountMediaBefore(_ context.Context, before time.Time) (map[models.MessageType]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[models.MessageType]int64{}
	for _, m := range s.msgs {
		if m.Type.IsMedia() && !m.IsDeleted && m.CreatedAt.Before(before) {
			out[m.Type]++
		}
	}
	return out, nil
}

func (s *messageStore) CountExpired(_ context.Context) (map[models.MessageType]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[models.MessageType]int64{}
	for _, m := range s.msgs {
		if m.IsDeleted && m.Content.OriginalType != "" {
			out[m.Content.OriginalType]++
		}
	}
	return out, nil
}

func (s *messageStore) all() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, *m)
	}
	return out
}

type stickerStore map[string]models.Sticker

func (s stickerStore) Get(_ context.Context, id string) (models.Sticker, error) {
	st, ok := s[id]
	if !ok {
		return models.Sticker{}, repositories.ErrStickerNotFound
	}
	return st, nil
}

func (s stickerStore) List(context.Context) ([]models.Sticker, error) {
	out := make([]models.Sticker, 0, len(s))
	for _, st := range s {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type userDirectory struct {
	users map[string]models.UserInfo
	pro   map[string]bool
	vip   map[string]int
}

func newUserDirectory(ids ...string) *userDirectory {
	d := &userDirectory{users: map[string]models.UserInfo{}, pro: map[string]bool{}, vip: map[string]int{}}
	for _, id := range ids {
		d.users[id] = models.UserInfo{ID: id, Name: "name-" + id, Avatar: "https://cdn.example.com/" + id + ".png"}
	}
	return d
}

func (d *userDirectory) GetDisplayInfo(_ context.Context, id string) (models.UserInfo, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return models.DeletedUserPlaceholder(id), nil
}

func (d *userDirectory) GetDisplayInfos(_ context.Context, ids []string) (map[string]models.UserInfo, error) {
	out := map[string]models.UserInfo{}
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (d *userDirectory) IsPro(_ context.Context, id string) (bool, error) { return d.pro[id], nil }

func (d *userDirectory) VIPLevel(_ context.Context, id string) (int, error) { return d.vip[id], nil }

type relations struct {
	friends map[[2]string]bool
	blocks  map[[2]string]bool
}

func newRelations() *relations {
	return &relations{friends: map[[2]string]bool{}, blocks: map[[2]string]bool{}}
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func (r *relations) befriend(a, b string) { r.friends[pairKey(a, b)] = true }
func (r *relations) block(a, b string)    { r.blocks[pairKey(a, b)] = true }

func (r *relations) IsFriend(_ context.Context, a, b string) (bool, error) {
	return r.friends[pairKey(a, b)], nil
}

func (r *relations) IsBlocked(_ context.Context, a, b string) (bool, error) {
	return r.blocks[pairKey(a, b)], nil
}

type walletStore struct {
	mu       sync.Mutex
	balances map[string]int64
	debits   []int64
}

func newWalletStore(balances map[string]int64) *walletStore {
	return &walletStore{balances: balances}
}

func (w *walletStore) Debit(_ context.Context, userID string, amount int64, _, _ string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[userID] < amount {
		return 0, repositories.ErrInsufficientFunds
	}
	w.balances[userID] -= amount
	w.debits = append(w.debits, amount)
	return w.balances[userID], nil
}

func (w *walletStore) Balance(_ context.Context, userID string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID], nil
}

func (w *walletStore) balance(userID string) int64 {
	b, _ := w.Balance(context.Background(), userID)
	return b
}

type presenceFake struct {
	online  map[string]bool
	viewing map[string]string
}

func newPresenceFake() *presenceFake {
	return &presenceFake{online: map[string]bool{}, viewing: map[string]string{}}
}

func (p *presenceFake) IsOnline(_ context.Context, userID string) (bool, error) {
	return p.online[userID], nil
}

func (p *presenceFake) OnlineUsers(_ context.Context, userIDs []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range userIDs {
		if p.online[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (p *presenceFake) IsUserActivelyViewing(_ context.Context, userID, conversationID string) (bool, error) {
	return conversationID != "" && p.online[userID] && p.viewing[userID] == conversationID, nil
}

type dispatch struct {
	Event    string
	UserID   string
	Payload  any
	Fallback bool
}

type dispatcherRecorder struct {
	mu         sync.Mutex
	calls      []dispatch
	broadcasts []dispatch
}

func (d *dispatcherRecorder) DeliverToUser(_ context.Context, event string, payload any, userID string, fallback bool) delivery.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatch{Event: event, UserID: userID, Payload: payload, Fallback: fallback})
	return delivery.Result{UserID: userID, Status: delivery.StatusDeliveredLive}
}

func (d *dispatcherRecorder) DeliverToUsers(ctx context.Context, event string, payload any, userIDs []string, fallback bool) []delivery.Result {
	out := make([]delivery.Result, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, d.DeliverToUser(ctx, event, payload, id, fallback))
	}
	return out
}

func (d *dispatcherRecorder) BroadcastToAll(_ context.Context, event string, payload any, fallback bool) delivery.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.broadcasts = append(d.broadcasts, dispatch{Event: event, Payload: payload, Fallback: fallback})
	return delivery.Result{Status: delivery.StatusDeliveredLive}
}

func (d *dispatcherRecorder) byEvent(event string) []dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []dispatch
	for _, c := range d.calls {
		if c.Event == event {
			out = append(out, c)
		}
	}
	return out
}

type mediaFake struct {
	mu        sync.Mutex
	uploads   []string
	removed   []string
	failOn    map[string]bool
	uploadErr error
}

func newMediaFake() *mediaFake {
	return &mediaFake{failOn: map[string]bool{}}
}

func (m *mediaFake) Upload(_ context.Context, folder, filename, _ string, r io.Reader, _ int64) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "https://media.example.com/" + folder + "/" + filename
	m.uploads = append(m.uploads, url)
	return url, nil
}

func (m *mediaFake) RemoveURL(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn[url] {
		return fmt.Errorf("remove %s: access denied", url)
	}
	m.removed = append(m.removed, url)
	return nil
}

type giftStore struct {
	mu      sync.Mutex
	entries []*models.StrangerGift
}

func (g *giftStore) Record(_ context.Context, receiverID, senderID string, gift models.GiftRef, at time.Time) (models.StrangerGift, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.entries {
		if e.ReceiverID == receiverID && e.SenderID == senderID && e.GiftID == gift.GiftID {
			e.Total += gift.Amount
			e.IsRead = false
			e.Date, e.UpdatedAt = at, at
			return *e, nil
		}
	}
	e := &models.StrangerGift{
		ID:         fmt.Sprintf("gift-%d", len(g.entries)+1),
		ReceiverID: receiverID,
		SenderID:   senderID,
		GiftID:     gift.GiftID,
		GiftImage:  gift.Image,
		Total:      gift.Amount,
		Date:       at,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	g.entries = append(g.entries, e)
	return *e, nil
}

func (g *giftStore) ListForReceiver(_ context.Context, receiverID string, limit int64) ([]models.StrangerGift, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []models.StrangerGift
	for _, e := range g.entries {
		if e.ReceiverID == receiverID {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return window(out, 0, limit), nil
}

func (g *giftStore) MarkAllRead(_ context.Context, receiverID string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n int64
	for _, e := range g.entries {
		if e.ReceiverID == receiverID && !e.IsRead {
			e.IsRead = true
			n++
		}
	}
	return n, nil
}

func (g *giftStore) CountUnread(_ context.Context, receiverID string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n int64
	for _, e := range g.entries {
		if e.ReceiverID == receiverID && !e.IsRead {
			n++
		}
	}
	return n, nil
}

type systemStore struct {
	mu    sync.Mutex
	msgs  []models.SystemMessage
	reads map[string]time.Time
}

func newSystemStore() *systemStore {
	return &systemStore{reads: map[string]time.Time{}}
}

func (s *systemStore) Create(_ context.Context, msg models.SystemMessage) (models.SystemMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = fmt.Sprintf("sys-%d", len(s.msgs)+1)
	s.msgs = append(s.msgs, msg)
	return msg, nil
}

func (s *systemStore) visible(userID string) []models.SystemMessage {
	var out []models.SystemMessage
	for i := len(s.msgs) - 1; i >= 0; i-- {
		m := s.msgs[i]
		if m.SenderType == models.SystemBroadcast || m.ReceiverID == userID {
			out = append(out, m)
		}
	}
	return out
}

func (s *systemStore) ListForUser(_ context.Context, userID string, skip, limit int64) ([]models.SystemMessage, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.visible(userID)
	return window(out, skip, limit), int64(len(out)), nil
}

func (s *systemStore) CountSince(_ context.Context, userID string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.visible(userID) {
		if m.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *systemStore) LastRead(_ context.Context, userID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.reads[userID]; ok {
		return t, nil
	}
	return time.Unix(0, 0).UTC(), nil
}

func (s *systemStore) SetLastRead(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[userID] = at
	return nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Publish(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) Close() error { return nil }

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

var (
	_ events.Publisher                     = (*eventRecorder)(nil)
	_ repositories.ConversationRepository  = (*conversationStore)(nil)
	_ repositories.MessageRepository       = (*messageStore)(nil)
	_ repositories.StickerRepository       = stickerStore(nil)
	_ repositories.WalletRepository        = (*walletStore)(nil)
	_ repositories.StrangerGiftRepository  = (*giftStore)(nil)
	_ repositories.SystemMessageRepository = (*systemStore)(nil)
	_ UserDirectory                        = (*userDirectory)(nil)
	_ RelationshipGate                     = (*relations)(nil)
	_ Presence                             = (*presenceFake)(nil)
	_ Dispatcher                           = (*dispatcherRecorder)(nil)
	_ MediaStore                           = (*mediaFake)(nil)
)

type giftCatalog map[string]models.Gift

func (c giftCatalog) GetMany(_ context.Context, ids []string) (map[string]models.Gift, error) {
	out := map[string]models.Gift{}
	for _, id := range ids {
		if g, ok := c[id]; ok {
			out[id] = g
		}
	}
	return out, nil
}

// wordFilterFake blocks any text containing one of its words.
type wordFilterFake struct {
	blocked []string
	checked []string
}

func (f *wordFilterFake) ContainsForbidden(_ context.Context, text string) bool {
	f.checked = append(f.checked, text)
	for _, w := range f.blocked {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
