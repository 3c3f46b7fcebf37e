package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bcnelson/facepoke-broker/internal/domain"
)

const (
	textWelcome = "😃 Face Poke\n\n" +
		"✨ Features:\n" +
		"• Transfer facial expressions between photos\n\n" +
		"🔒 An activation key is required for access."
	textAdminPanel       = "⚙️ Control panel"
	textActivated        = "✅ Account activated!"
	textAccessDenied     = "⛔ Access denied"
	textNoKey            = "⛔ Access denied\n\nAsk an administrator for an activation key."
	textSendSource       = "📷 Send the source photo:"
	textSendExpression   = "📷 Send the photo with the facial expression:"
	textStillWaiting     = "📷 Waiting for a photo. Press Cancel to stop."
	textGenerating       = "🚀 Starting generation..."
	textDone             = "✅ Done!"
	textCancelled        = "Cancelled."
	textRevokeMenu       = "🔐 Choose a key to revoke:\n✅ active\n🆓 free"
	textNoKeys           = "📭 The key store is empty"
	textRevoked          = "Access revoked."
	textNothingToRevoke  = "Nothing to revoke."
	textUnknownCommand   = "Unknown command."
	textUsageRevoke      = "Usage: /revoke <user id or key>"
	textUsageRevokeUser  = "Usage: /revoke_user <user id>"
	textUsageRevokeKey   = "Usage: /revoke_key <key>"
	textKeyDeleted       = "Key deleted"
	textKeyDeactivated   = "Key deactivated"
	textInternalError    = "❌ Something went wrong. Try again later."
	labelGenerate        = "✒️ Generate"
	labelControlPanel    = "⚙️ Control panel"
	labelCreateKey       = "🔐 Create key"
	labelRemoveAccess    = "❌ Remove access"
	labelKeyList         = "📋 Key list"
	labelBack            = "🔼 Back"
	labelCancel          = "❌ Cancel"
	unknownOwnerName     = "no data"
	keyListSeparator     = "────────────────────"
	keyListCreatedLayout = "2006-01-02 15:04:05"
)

// userMessage maps an error onto the single message the user sees.
// The second return value is false for errors that need to be logged.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrInvalidKeyFormat):
		return "❌ Invalid key format", true
	case errors.Is(err, domain.ErrAlreadyOwnsKey):
		return "⚠️ You already have an active key!", true
	case errors.Is(err, domain.ErrActivationConflict):
		return "❌ Invalid or already used key", true
	case errors.Is(err, domain.ErrDuplicateKey):
		return "⚠️ Key already exists, try again", true
	case errors.Is(err, domain.ErrPermissionDenied):
		return textAccessDenied, true
	case errors.Is(err, domain.ErrRemoteService):
		return "❌ Processing failed. Try again!", true
	case errors.Is(err, domain.ErrNotFound):
		return "❌ Key not found", true
	case errors.Is(err, domain.ErrInvalidInput):
		return "❌ Invalid input", true
	default:
		return textInternalError, false
	}
}

func newKeyText(botUsername, key string) string {
	text := "🔑 New key: " + key
	if link := domain.ActivationLink(botUsername, key); link != "" {
		text += "\n" + link
	}
	return text
}

func ownerName(k *domain.ActivationKey) string {
	if k.OwnerName == nil || *k.OwnerName == "" {
		return unknownOwnerName
	}
	return *k.OwnerName
}

// maskedHash shows the first and last characters of a stored hash.
func maskedHash(hash string) string {
	if len(hash) <= domain.ShortHashLength+4 {
		return hash
	}
	return hash[:domain.ShortHashLength] + "..." + hash[len(hash)-4:]
}

func keyListText(keys []*domain.ActivationKey) string {
	var b strings.Builder
	b.WriteString("📋 All keys:\n\n")
	for _, k := range keys {
		status := "🆓 Free"
		if k.Owned() {
			status = "✅ Active"
		}
		fmt.Fprintf(&b, "🔑 %s - %s\n", maskedHash(k.Hash), status)
		if k.Owned() {
			fmt.Fprintf(&b, "👤 @%s (%s)\n", ownerName(k), *k.OwnerID)
		}
		fmt.Fprintf(&b, "🕒 Created: %s\n%s\n", k.CreatedAt.UTC().Format(keyListCreatedLayout), keyListSeparator)
	}
	return b.String()
}

func revokeButtonLabel(k *domain.ActivationKey) string {
	status := "🆓 Free"
	if k.Owned() {
		status = "✅ Active"
	}
	return fmt.Sprintf("%s | %s... | %s", status, k.ShortHash(), ownerName(k))
}
