package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"sort"
	"strconv"

	"cyberherd-messaging/internal/compose"
	"cyberherd-messaging/internal/keys"
	"cyberherd-messaging/internal/templates"
	"cyberherd-messaging/internal/thread"
)

// adminOwner is the owner namespace for authenticated writes. Reads
// without a key see only the shared defaults.
const adminOwner = "admin"

const maxBodySize = 64 * 1024

// Server wires the messenger to HTTP.
type Server struct {
	cfg       *Config
	messenger *Messenger
	store     Store
	hub       *Hub
}

func NewServer(cfg *Config, messenger *Messenger, store Store, hub *Hub) *Server {
	return &Server{cfg: cfg, messenger: messenger, store: store, hub: hub}
}

// Routes registers all handlers on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/publish", s.requireAdmin(s.handlePublish))
	mux.HandleFunc("POST /api/v1/ws_broadcast", s.requireAdmin(s.handleWsBroadcast))
	mux.HandleFunc("POST /api/v1/publish_template", s.requireAdmin(s.handlePublishTemplate))
	mux.HandleFunc("POST /api/v1/publish_template_with_values", s.requireAdmin(s.handlePublishTemplateWithValues))
	mux.HandleFunc("POST /api/v1/compose", s.requireAdmin(s.handleCompose))

	mux.HandleFunc("GET /api/v1/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/v1/templates", s.requireAdmin(s.handleCreateTemplate))
	mux.HandleFunc("GET /api/v1/templates/categories", s.handleListCategories)
	mux.HandleFunc("GET /api/v1/templates/defaults", s.handleGetDefaults)
	mux.HandleFunc("POST /api/v1/templates/defaults/import", s.requireAdmin(s.handleImportDefaults))
	mux.HandleFunc("GET /api/v1/templates/export", s.requireAdmin(s.handleExportTemplates))
	mux.HandleFunc("POST /api/v1/templates/import_file", s.requireAdmin(s.handleImportFile))
	mux.HandleFunc("GET /api/v1/templates/category/{category}/random", s.handleRandomTemplate)
	mux.HandleFunc("DELETE /api/v1/templates/category/{category}", s.requireAdmin(s.handleDeleteCategory))
	mux.HandleFunc("PUT /api/v1/templates/category/{category}/rename", s.requireAdmin(s.handleRenameCategory))
	mux.HandleFunc("GET /api/v1/templates/{category}/{key}", s.handleGetTemplate)
	mux.HandleFunc("PUT /api/v1/templates/{category}/{key}", s.requireAdmin(s.handleUpdateTemplate))
	mux.HandleFunc("DELETE /api/v1/templates/{category}/{key}", s.requireAdmin(s.handleDeleteTemplate))

	mux.HandleFunc("GET /api/v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/v1/settings", s.requireAdmin(s.handleUpdateSettings))

	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /metrics", metricsHandler)
}

// requireAdmin gates write endpoints on the configured admin key.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.isAdmin(r) {
			writeError(w, http.StatusUnauthorized, "missing or invalid api key")
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		}
		next(w, r)
	}
}

func (s *Server) isAdmin(r *http.Request) bool {
	if s.cfg.AdminKey == "" {
		return false
	}
	key := r.Header.Get("X-Api-Key")
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.AdminKey)) == 1
}

// readOwner maps a request to its template namespace: admins see their
// own templates overlaid on the defaults, everyone else the defaults.
func (s *Server) readOwner(r *http.Request) string {
	if s.isAdmin(r) {
		return adminOwner
	}
	return ""
}

type publishPayload struct {
	Content            string   `json:"content"`
	ETags              []string `json:"e_tags"`
	PTags              []string `json:"p_tags"`
	ReplyRelay         string   `json:"reply_relay"`
	ReplyTo30311Event  string   `json:"reply_to_30311_event"`
	ReplyTo30311ATag   string   `json:"reply_to_30311_a_tag"`
}

func (p publishPayload) options() PublishOptions {
	return PublishOptions{
		ETags:       p.ETags,
		PTags:       p.PTags,
		ReplyRelay:  p.ReplyRelay,
		ChatEventID: p.ReplyTo30311Event,
		Coordinate:  p.ReplyTo30311ATag,
	}
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var payload publishPayload
	if !readJSON(w, r, &payload) {
		return
	}
	outcome, err := s.messenger.PublishNote(r.Context(), adminOwner, payload.Content, payload.options())
	if err != nil {
		writePublishError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type wsBroadcastPayload struct {
	Category string          `json:"category"`
	Message  json.RawMessage `json:"message"`
	Text     string          `json:"text"`
}

func (s *Server) handleWsBroadcast(w http.ResponseWriter, r *http.Request) {
	var payload wsBroadcastPayload
	if !readJSON(w, r, &payload) {
		return
	}
	// The topic is the authenticated owner, so clients subscribed to
	// another topic never see these messages.
	sent := s.messenger.Broadcast(r.Context(), adminOwner, BroadcastMessage{
		Category: payload.Category,
		Text:     payload.Text,
		Payload:  payload.Message,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sent":     sent > 0,
		"clients":  sent,
		"topic":    adminOwner,
		"category": payload.Category,
	})
}

type publishTemplatePayload struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	publishPayload
}

func (s *Server) handlePublishTemplate(w http.ResponseWriter, r *http.Request) {
	var payload publishTemplatePayload
	if !readJSON(w, r, &payload) {
		return
	}
	outcome, err := s.messenger.PublishTemplate(r.Context(), adminOwner, payload.Category, payload.Key, payload.options())
	if err != nil {
		writePublishError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type publishTemplateWithValuesPayload struct {
	Category               string            `json:"category"`
	Key                    string            `json:"key"`
	Values                 map[string]string `json:"values"`
	ReturnWebsocketMessage bool              `json:"return_websocket_message"`
	publishPayload
}

func (s *Server) handlePublishTemplateWithValues(w http.ResponseWriter, r *http.Request) {
	var payload publishTemplateWithValuesPayload
	if !readJSON(w, r, &payload) {
		return
	}

	if payload.ReturnWebsocketMessage {
		rendered, err := s.messenger.RenderTemplate(r.Context(), adminOwner, payload.Category, payload.Key, payload.Values)
		if err != nil {
			writePublishError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"websocket_message": rendered.WebsocketContent,
			"goat_data":         rendered.GoatData,
			"published":         false,
		})
		return
	}

	outcome, _, err := s.messenger.PublishTemplateWithValues(
		r.Context(), adminOwner, payload.Category, payload.Key, payload.Values, payload.options())
	if err != nil {
		writePublishError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type composePayload struct {
	EventType string `json:"event_type"`
	Topic     string `json:"topic"`

	Member   personPayload `json:"member"`
	Attacker personPayload `json:"attacker"`
	Victim   personPayload `json:"victim"`

	Amount         int64 `json:"amount"`
	NewAmount      int64 `json:"new_amount"`
	Difference     int64 `json:"difference"`
	IncreaseAmount int64 `json:"increase_amount"`
	AttackerAmount int64 `json:"attacker_amount"`
	VictimAmount   int64 `json:"victim_amount"`
	RequiredSats   int64 `json:"required_sats"`
	SpotsRemaining int   `json:"spots_remaining"`

	HeadbuttInfo *headbuttPayload `json:"headbutt_info"`
	NextHeadbutt *headbuttPayload `json:"next_headbutt_info"`

	publishPayload
}

type personPayload struct {
	DisplayName string `json:"display_name"`
	Pubkey      string `json:"pubkey"`
	Nprofile    string `json:"nprofile"`
	EventID     string `json:"event_id"`
}

func (p personPayload) person() compose.Person {
	return compose.Person{
		DisplayName: p.DisplayName,
		Pubkey:      p.Pubkey,
		Nprofile:    p.Nprofile,
		EventID:     p.EventID,
	}
}

type headbuttPayload struct {
	RequiredSats int64  `json:"required_sats"`
	VictimName   string `json:"victim_name"`
}

func (p *headbuttPayload) stakes() *compose.HeadbuttStakes {
	if p == nil {
		return nil
	}
	return &compose.HeadbuttStakes{RequiredSats: p.RequiredSats, VictimName: p.VictimName}
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	var payload composePayload
	if !readJSON(w, r, &payload) {
		return
	}

	params := compose.Params{
		Member:         payload.Member.person(),
		Attacker:       payload.Attacker.person(),
		Victim:         payload.Victim.person(),
		Amount:         payload.Amount,
		NewAmount:      payload.NewAmount,
		Difference:     payload.Difference,
		IncreaseAmount: payload.IncreaseAmount,
		AttackerAmount: payload.AttackerAmount,
		VictimAmount:   payload.VictimAmount,
		RequiredSats:   payload.RequiredSats,
		SpotsRemaining: payload.SpotsRemaining,
		HeadbuttInfo:   payload.HeadbuttInfo.stakes(),
		NextHeadbutt:   payload.NextHeadbutt.stakes(),
	}

	topic := payload.Topic
	if topic == "" {
		topic = adminOwner
	}

	bundle, outcome, err := s.messenger.ComposeEvent(r.Context(), adminOwner, topic, payload.EventType, params, payload.options())
	if err != nil {
		// Only bundle build failures land here; channel failures are
		// reported inside the outcome.
		writePublishError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nostr_content":     bundle.NostrContent,
		"websocket_content": bundle.WebsocketContent,
		"spots_info":        bundle.SpotsInfo,
		"headbutt_text":     bundle.HeadbuttText,
		"goat_data":         bundle.GoatData,
		"outcome":           outcome,
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	list, err := templates.ListMerged(r.Context(), s.store, s.readOwner(r), category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"templates": list})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	owner := s.readOwner(r)
	cats, err := s.store.Categories(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if owner != "" {
		own, err := s.store.Categories(r.Context(), owner)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		cats = mergeSorted(cats, own)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": cats})
}

func (s *Server) handleGetDefaults(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context(), "", "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defaults := make(map[string]map[string]string)
	for _, tpl := range list {
		if defaults[tpl.Category] == nil {
			defaults[tpl.Category] = make(map[string]string)
		}
		defaults[tpl.Category][tpl.Key] = tpl.Content
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"defaults": defaults})
}

// handleImportDefaults copies the shared defaults into the admin's own
// namespace, skipping keys the admin already customized.
func (s *Server) handleImportDefaults(w http.ResponseWriter, r *http.Request) {
	shared, err := s.store.List(r.Context(), "", "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	created := 0
	for _, tpl := range shared {
		if _, err := s.store.Get(r.Context(), adminOwner, tpl.Category, tpl.Key); err == nil {
			continue
		}
		tpl.Owner = adminOwner
		if err := s.store.Put(r.Context(), tpl); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		created++
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"imported": created})
}

func (s *Server) handleExportTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := templates.ListMerged(r.Context(), s.store, adminOwner, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	mapping := make(map[string]map[string]string)
	for _, tpl := range list {
		if mapping[tpl.Category] == nil {
			mapping[tpl.Category] = make(map[string]string)
		}
		mapping[tpl.Category][tpl.Key] = tpl.Content
	}
	w.Header().Set("Content-Disposition", `attachment; filename="cyberherd_templates.json"`)
	writeJSON(w, http.StatusOK, mapping)
}

// handleImportFile accepts a JSON body of {category: {key: content}}
// and upserts it into the admin's namespace.
func (s *Server) handleImportFile(w http.ResponseWriter, r *http.Request) {
	var mapping map[string]map[string]string
	if !readJSON(w, r, &mapping) {
		return
	}
	if len(mapping) == 0 {
		writeError(w, http.StatusBadRequest, "expected {category: {key: content}}")
		return
	}

	created, updated := 0, 0
	var cats []string
	for category, inner := range mapping {
		cats = append(cats, category)
		for key, content := range inner {
			_, err := s.store.Get(r.Context(), adminOwner, category, key)
			exists := err == nil
			tpl := templates.Template{Owner: adminOwner, Category: category, Key: key, Content: content}
			if err := s.store.Put(r.Context(), tpl); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if exists {
				updated++
			} else {
				created++
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"created":    created,
		"updated":    updated,
		"categories": mergeSorted(nil, cats),
	})
}

func (s *Server) handleRandomTemplate(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	list, err := templates.ListMerged(r.Context(), s.store, s.readOwner(r), category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(list) == 0 {
		writeError(w, http.StatusNotFound, "no templates found in category "+strconv.Quote(category))
		return
	}
	tpl := list[randomIndex(len(list))]
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := templates.Lookup(r.Context(), s.store, s.readOwner(r), r.PathValue("category"), r.PathValue("key"))
	if err != nil {
		if errors.Is(err, templates.ErrTemplateNotFound) {
			writeError(w, http.StatusNotFound, "template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

type templatePayload struct {
	Category   string `json:"category"`
	Key        string `json:"key"`
	Content    string `json:"content"`
	ReplyRelay string `json:"reply_relay"`
}

// packContent folds a separate reply_relay into the stored JSON body
// form so the hint survives round trips.
func (p templatePayload) packContent() string {
	if p.ReplyRelay == "" {
		return p.Content
	}
	parsed := templates.ParseContent(p.Content)
	if parsed.ReplyRelay != "" {
		// Body already carries its own hint
		return p.Content
	}
	packed, err := json.Marshal(struct {
		Content    string `json:"content"`
		ReplyRelay string `json:"reply_relay"`
	}{parsed.Content, p.ReplyRelay})
	if err != nil {
		return p.Content
	}
	return string(packed)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var payload templatePayload
	if !readJSON(w, r, &payload) {
		return
	}
	if payload.Category == "" || payload.Key == "" {
		writeError(w, http.StatusBadRequest, "category and key are required")
		return
	}
	tpl := templates.Template{
		Owner:    adminOwner,
		Category: payload.Category,
		Key:      payload.Key,
		Content:  payload.packContent(),
	}
	if err := s.store.Put(r.Context(), tpl); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var payload templatePayload
	if !readJSON(w, r, &payload) {
		return
	}
	category, key := r.PathValue("category"), r.PathValue("key")
	if _, err := s.store.Get(r.Context(), adminOwner, category, key); err != nil {
		if errors.Is(err, templates.ErrTemplateNotFound) {
			writeError(w, http.StatusNotFound, "template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload.Category, payload.Key = category, key
	tpl := templates.Template{Owner: adminOwner, Category: category, Key: key, Content: payload.packContent()}
	if err := s.store.Put(r.Context(), tpl); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"updated": true})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.Context(), adminOwner, r.PathValue("category"), r.PathValue("key"))
	if err != nil {
		if errors.Is(err, templates.ErrTemplateNotFound) {
			writeError(w, http.StatusNotFound, "template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.DeleteCategory(r.Context(), adminOwner, r.PathValue("category"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Idempotent: deleting an empty category succeeds with count 0
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": count, "success": true})
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewCategory string `json:"new_category"`
	}
	if !readJSON(w, r, &payload) {
		return
	}
	if payload.NewCategory == "" {
		writeError(w, http.StatusBadRequest, "new_category is required")
		return
	}
	count, err := s.store.RenameCategory(r.Context(), adminOwner, r.PathValue("category"), payload.NewCategory)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if count == 0 {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"renamed": count, "new_category": payload.NewCategory})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	enabled := s.messenger.PublishingEnabled(r.Context())
	keySet := false
	if s.isAdmin(r) {
		keySet = s.messenger.HasPrivateKey(r.Context(), adminOwner)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nostr_publishing_enabled": enabled,
		"nostr_private_key_set":    keySet,
	})
}

type settingsPayload struct {
	NostrPublishingEnabled *bool   `json:"nostr_publishing_enabled"`
	NostrPrivateKey        *string `json:"nostr_private_key"`
	ClearPrivateKey        bool    `json:"clear_private_key"`
	DefaultReplyRelay      *string `json:"default_reply_relay"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if !readJSON(w, r, &payload) {
		return
	}

	ctx := r.Context()
	if payload.NostrPublishingEnabled != nil {
		if err := s.messenger.SetPublishingEnabled(ctx, *payload.NostrPublishingEnabled); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if payload.ClearPrivateKey {
		if err := s.messenger.ClearPrivateKey(ctx, adminOwner); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	} else if payload.NostrPrivateKey != nil && *payload.NostrPrivateKey != "" {
		if err := s.messenger.SetPrivateKey(ctx, adminOwner, *payload.NostrPrivateKey); err != nil {
			if errors.Is(err, keys.ErrKeyFormat) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if payload.DefaultReplyRelay != nil {
		hint := thread.NormalizeRelayHint(*payload.DefaultReplyRelay)
		if *payload.DefaultReplyRelay != "" && hint == "" {
			writeError(w, http.StatusBadRequest, "default_reply_relay is not a ws/wss or http/https URL")
			return
		}
		if err := s.store.SetSetting(ctx, "", settingReplyRelay, hint); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.handleGetSettings(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = adminOwner
	}
	s.hub.ServeWS(w, r, topic)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writePublishError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, templates.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "template not found")
	case errors.Is(err, ErrNoSigningKey):
		writeError(w, http.StatusBadRequest, "no stored nostr private key configured")
	case errors.Is(err, keys.ErrKeyFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, compose.ErrUnknownEventType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func mergeSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sortCategories(out)
	return out
}

// sortCategories sorts numeric names numerically and the rest
// alphabetically, numbers first.
func sortCategories(cats []string) {
	sort.Slice(cats, func(i, j int) bool {
		a, b := cats[i], cats[j]
		ai, aerr := strconv.Atoi(a)
		bi, berr := strconv.Atoi(b)
		switch {
		case aerr == nil && berr == nil:
			return ai < bi
		case aerr == nil:
			return true
		case berr == nil:
			return false
		default:
			return a < b
		}
	})
}

// randomIndex uses the package-level locked source, which is safe for
// concurrent handlers.
func randomIndex(n int) int {
	return rand.Intn(n)
}
