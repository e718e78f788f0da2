package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"

	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"

	Red       = "\033[31m"
	BrightRed = "\033[91m"
)

// Storage log prefixes
const (
	LogStoreInit = Blue + "[Store:Init]" + Reset
	LogStore     = Blue + "[Store]" + Reset
)

// Rate limiting and request security prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogBearer    = Purple + "[Bearer]" + Reset
	LogSecurity  = Red + "[Security]" + Reset
)

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
)

// Auth flow prefixes
const (
	LogAuth       = Purple + "[Auth]" + Reset
	LogAudit      = Green + "[Audit]" + Reset
	LogAuthClient = Cyan + "[AuthClient]" + Reset
	LogInternal   = Red + "[Internal]" + Reset
)

// Client-side component prefixes
const (
	LogCatalog   = Cyan + "[Catalog]" + Reset
	LogSearch    = Blue + "[Search]" + Reset
	LogSuggest   = BrightBlue + "[Suggest]" + Reset
	LogFavorites = Green + "[Favorites]" + Reset
	LogUndo      = BrightGreen + "[Undo]" + Reset
	LogBridge    = BrightMagenta + "[Bridge]" + Reset
	LogSession   = BrightCyan + "[Session]" + Reset
	LogHTTP      = Cyan + "[HTTP]" + Reset
	LogWarning   = Red + "[Warning]" + Reset
)

// userColors are the colors used for usernames (rotating based on hash)
var userColors = []string{
	Green, Blue, Purple, Cyan, Red,
	BrightGreen, BrightBlue, BrightMagenta, BrightCyan, BrightRed,
}

// User returns a colored username for audit log messages.
// Same username always gets the same color
func User(name string) string {
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	color := userColors[hash%len(userColors)]
	return color + name + Reset
}
