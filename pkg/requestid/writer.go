package requestid

import "net/http"

// idWriter attaches the identifier header right before the response head is
// committed.
type idWriter struct {
	http.ResponseWriter
	header    string
	id        ID
	committed bool
}

func (w *idWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	w.ResponseWriter.Header().Set(w.header, string(w.id))
}

func (w *idWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *idWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

// FlushError lets http.ResponseController flush through the wrapper.
func (w *idWriter) FlushError() error {
	w.commit()
	return http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *idWriter) Flush() {
	_ = w.FlushError()
}

func (w *idWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
