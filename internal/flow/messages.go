package flow

// User-facing texts. All of them are HTML.
const (
	msgMenu          = "What would you like to do?"
	msgPickFromMenu  = "Please pick an option below."
	msgUseButtons    = "Please use the buttons below."
	msgNoImageHere   = "I wasn't expecting a photo here."
	msgCancelled     = "❌ Cancelled. Nothing was saved."
	msgNothingToStop = "Nothing to cancel."
	msgExpired       = "⌛ Your previous session expired."
	msgLostContext   = "⚠️ I lost track of what we were doing. Please start again."
	msgUnrouted      = "⚠️ That button is no longer active."
	msgInternal      = "⚠️ Something went wrong. Please start again."

	msgLedgerDown    = "❌ Could not reach the ledger. Please try again later."
	msgSaveFailed    = "❌ There was an error saving your expense. Nothing was recorded, please try again."
	msgUploadFailed  = "⚠️ The receipt image could not be uploaded. The expense will still be saved."
	msgUploadAborted = "❌ The receipt image could not be uploaded. The row was not changed."

	msgMonthPicker = "📅 <b>Pick the month</b> of the expense, tap Today, or type the date (YYYY.MM.DD):"
	msgManualDate  = "Please enter the date (YYYY.MM.DD) or send <code>today</code>:"
	msgBadDate     = "Please use the format YYYY.MM.DD (e.g., 2025.01.01) or type <code>today</code>."
	msgPickDay     = "Please pick a day."

	msgNoExpenses     = "No expenses recorded yet."
	msgNothingToEdit  = "There is nothing to edit yet."
	msgNothingToDel   = "There is nothing to delete yet."
	msgRowGone        = "❌ That expense no longer exists."
	msgDeleteAborted  = "Deletion cancelled."
	msgEndBeforeStart = "The end date cannot be before the start date."
	msgNothingToChart = "📊 There is nothing to chart yet."
)
