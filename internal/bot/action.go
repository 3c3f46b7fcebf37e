package bot

import (
	"fmt"
	"strings"
)

// ActionKind identifies a button action.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionMenu
	ActionStart
	ActionBack
	ActionCancel
	ActionAdmin
	ActionGenerateKey
	ActionRevokeMenu
	ActionListKeys
	ActionRevoke
)

var actionNames = map[ActionKind]string{
	ActionMenu:        "menu",
	ActionStart:       "start",
	ActionBack:        "back",
	ActionCancel:      "cancel",
	ActionAdmin:       "admin",
	ActionGenerateKey: "gen_key",
	ActionRevokeMenu:  "remove_access",
	ActionListKeys:    "key_list",
	ActionRevoke:      "revoke",
}

var actionsByName = func() map[string]ActionKind {
	m := make(map[string]ActionKind, len(actionNames))
	for k, v := range actionNames {
		m[v] = k
	}
	return m
}()

// Action is a decoded button press. Prefix is set only for ActionRevoke.
type Action struct {
	Kind   ActionKind
	Prefix string
}

// ParseAction decodes callback data of the form "name" or "revoke:<prefix>".
func ParseAction(data string) (Action, error) {
	name, payload, hasPayload := strings.Cut(data, ":")
	kind, ok := actionsByName[name]
	if !ok {
		return Action{}, fmt.Errorf("unknown action %q", name)
	}
	if kind == ActionRevoke {
		if !hasPayload || payload == "" {
			return Action{}, fmt.Errorf("revoke action without key prefix")
		}
		return Action{Kind: kind, Prefix: payload}, nil
	}
	if hasPayload {
		return Action{}, fmt.Errorf("action %q takes no payload", name)
	}
	return Action{Kind: kind}, nil
}

// String encodes the action as callback data.
func (a Action) String() string {
	name := actionNames[a.Kind]
	if a.Kind == ActionRevoke {
		return name + ":" + a.Prefix
	}
	return name
}
