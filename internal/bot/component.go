package bot

import (
	"regexp"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// ComponentKind is the family a component handler belongs to.
type ComponentKind string

const (
	ComponentButton ComponentKind = "button"
	ComponentModal  ComponentKind = "modal"
	ComponentSelect ComponentKind = "select"
)

// componentDirs maps the discovery subdirectories to kinds, in pass order.
var componentDirs = []struct {
	dir  string
	kind ComponentKind
}{
	{"buttons", ComponentButton},
	{"modals", ComponentModal},
	{"selects", ComponentSelect},
}

type componentRoute struct {
	customID string
	pattern  *regexp.Regexp
	handler  InteractionHandler
}

// ComponentRouter resolves custom ids to component handlers. A registered id
// is matched exactly first; failing that, every registered id is tried as a
// regular expression in registration order and the first match wins. Ids
// that are not valid expressions only match exactly.
type ComponentRouter struct {
	mu     sync.RWMutex
	routes map[ComponentKind][]*componentRoute
}

// NewComponentRouter creates an empty router.
func NewComponentRouter() *ComponentRouter {
	return &ComponentRouter{
		routes: make(map[ComponentKind][]*componentRoute),
	}
}

// Register adds a handler for customID. Registering an id again replaces its
// handler and keeps its original position.
func (r *ComponentRouter) Register(kind ComponentKind, customID string, handler InteractionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, route := range r.routes[kind] {
		if route.customID == customID {
			route.handler = handler
			return
		}
	}

	// Ids that do not compile stay exact-only.
	pattern, _ := regexp.Compile(customID)
	r.routes[kind] = append(r.routes[kind], &componentRoute{
		customID: customID,
		pattern:  pattern,
		handler:  handler,
	})
}

// Resolve returns the handler for id.
func (r *ComponentRouter) Resolve(kind ComponentKind, id string) (InteractionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := r.routes[kind]
	for _, route := range routes {
		if route.customID == id {
			return route.handler, true
		}
	}
	for _, route := range routes {
		if route.pattern != nil && route.pattern.MatchString(id) {
			return route.handler, true
		}
	}
	return nil, false
}

// Len returns the number of handlers registered for kind.
func (r *ComponentRouter) Len(kind ComponentKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes[kind])
}

// componentTarget returns the kind and custom id carried by a component or
// modal interaction.
func componentTarget(i *discordgo.InteractionCreate) (ComponentKind, string, bool) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		switch data.ComponentType {
		case discordgo.ButtonComponent:
			return ComponentButton, data.CustomID, true
		case discordgo.SelectMenuComponent,
			discordgo.UserSelectMenuComponent,
			discordgo.RoleSelectMenuComponent,
			discordgo.MentionableSelectMenuComponent,
			discordgo.ChannelSelectMenuComponent:
			return ComponentSelect, data.CustomID, true
		}
	case discordgo.InteractionModalSubmit:
		return ComponentModal, i.ModalSubmitData().CustomID, true
	}
	return "", "", false
}
