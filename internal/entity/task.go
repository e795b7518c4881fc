package entity

// QuizTask is the unit of work accepted at the intake boundary. It is
// immutable for the lifetime of one chain run.
type QuizTask struct {
	Email    string
	Secret   string
	StartURL string
}
