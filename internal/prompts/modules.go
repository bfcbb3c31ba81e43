package prompts

// Module identifies one of the fixed analysis modes offered by the client.
type Module string

const (
	ModuleMessage          Module = "message"
	ModuleAudio            Module = "audio"
	ModuleGlossary         Module = "glossary"
	ModuleResponse         Module = "response"
	ModuleRoutine          Module = "routine"
	ModuleDecoder          Module = "decoder"
	ModuleRoleplay         Module = "roleplay"
	ModuleRoleplayFeedback Module = "roleplay_feedback"
	ModuleTranslator       Module = "translator"
)

// Modules lists every registered module. The template store loads one system
// prompt and one user template per entry at construction time.
var Modules = []Module{
	ModuleMessage,
	ModuleAudio,
	ModuleGlossary,
	ModuleResponse,
	ModuleRoutine,
	ModuleDecoder,
	ModuleRoleplay,
	ModuleRoleplayFeedback,
	ModuleTranslator,
}

// ParseModule resolves a client-supplied identifier against the closed
// enumeration. Unknown identifiers are rejected before any template lookup.
func ParseModule(s string) (Module, bool) {
	for _, m := range Modules {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}
