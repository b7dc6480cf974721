package telegram

const (
	msgWelcome = "👋 Welcome! This bot drives your spaced-repetition reviews.\n\n" +
		"/newfolder <name> - create a study folder\n" +
		"/autofolders <name> <per day> <item...> - split items into daily folders\n" +
		"/folders - list your folders with progress\n" +
		"/add <folder> <item> [item...] - enroll vocabulary items\n" +
		"/study <folder> - review the folder's queue\n" +
		"/restart <folder> - mark a folder unlearned again\n" +
		"/remove <card> - drop a card entirely\n" +
		"/alarm <folder> on|off - toggle folder reminders\n" +
		"/quiz - review your missed items\n" +
		"/wrong - list missed items and their review windows\n" +
		"/streak - your daily streak"

	msgUnknownCommand = "Unknown command. Try /start for the list."
	msgNothingToStudy = "🎉 Nothing left to study in this folder."
	msgNoWrongAnswers = "✅ No missed items waiting for review."
	msgQuizDone       = "🏁 Quiz finished."
)
