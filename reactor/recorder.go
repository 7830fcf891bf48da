package reactor

// Recorder is the single "currently evaluating" slot of a System. Only
// Expression.Evaluate moves it, so it holds zero or one expression.
type Recorder struct {
	active *Expression
}

func (r *Recorder) Active() *Expression {
	return r.active
}

func (r *Recorder) enter(e *Expression) (prev *Expression) {
	prev = r.active
	r.active = e
	return prev
}

func (r *Recorder) exit(prev *Expression) {
	r.active = prev
}

// Tracker is handed to a callable for the duration of one evaluation and is
// passed to every tracked read. A nil Tracker reads without tracking.
type Tracker struct {
	expr *Expression
}

func (tr *Tracker) Expression() *Expression {
	if tr == nil {
		return nil
	}
	return tr.expr
}

// live reports whether reads through tr are attributed to an expression. A
// tracker kept past its evaluation, or used while a nested expression owns
// the recorder, records nothing.
func (tr *Tracker) live() bool {
	if tr == nil || tr.expr == nil {
		return false
	}
	return tr.expr.sys.recorder.active == tr.expr
}
