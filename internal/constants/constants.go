package constants

const (
	QuestionTypeSingle   = "single"
	QuestionTypeMultiple = "multiple"
	QuestionTypeJudge    = "judge"
)

const (
	ModeRandom = "random"
	ModeWrong  = "wrong"
)

// Type-label markers found in the bank's type column.
const (
	TypeLabelMultiple = "多选"
	TypeLabelJudge    = "判断"
)

// Keys of the four records kept in the state store.
const (
	KeyQuestions      = "questions"
	KeyWrongQuestions = "wrongQuestions"
	KeyStats          = "stats"
	KeyQuizProgress   = "quizProgress"
)

const (
	QueueSessionFinished = "quiz.session.finished"
	QueueBankLoaded      = "quiz.bank.loaded"
)
