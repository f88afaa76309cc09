package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/model"
)

// AlarmService is what the control API exposes. *reconcile.Service
// implements it.
type AlarmService interface {
	Loaded() bool
	Load(ctx context.Context) ([]model.Alarm, error)
	List() []model.Alarm
	Get(ctx context.Context, id int64) (model.Alarm, error)
	Create(ctx context.Context, in model.AlarmInput) (model.Alarm, error)
	Update(ctx context.Context, id int64, patch model.AlarmPatch) (model.Alarm, error)
	Delete(ctx context.Context, id int64) error
	Toggle(ctx context.Context, id int64, active bool) (model.Alarm, error)
	Sync(ctx context.Context) ([]model.Alarm, error)
}

// SessionService is the login state the control API exposes.
// *auth.Session implements it.
type SessionService interface {
	Login(ctx context.Context, usernameOrEmail, password string) (model.User, error)
	Register(ctx context.Context, username, email, password string) (model.User, error)
	Logout(ctx context.Context) error
	User() (model.User, bool)
}

// Control is what a daemon serves under /v1. Either field may be nil.
type Control struct {
	Alarms  AlarmService
	Session SessionService
}

// controlPrefix roots the control routes.
const controlPrefix = "/v1"

// errorBody is the JSON body of a failed control request.
type errorBody struct {
	Error      string            `json:"error"`
	Kind       timelyerrors.Kind `json:"kind"`
	Suggestion string            `json:"suggestion,omitempty"`
}

type toggleBody struct {
	Active bool `json:"active"`
}

// CredentialsBody is the body of a login or registration request.
type CredentialsBody struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// WhoamiBody reports the daemon's login state.
type WhoamiBody struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user,omitempty"`
}

type controlHandler struct {
	svc     AlarmService
	session SessionService
}

func registerControl(r *mux.Router, ctl *Control) {
	h := &controlHandler{svc: ctl.Alarms, session: ctl.Session}
	api := r.PathPrefix(controlPrefix).Subrouter()
	if ctl.Session != nil {
		api.HandleFunc("/session", h.whoami).Methods(http.MethodGet)
		api.HandleFunc("/session", h.login).Methods(http.MethodPost)
		api.HandleFunc("/session", h.logout).Methods(http.MethodDelete)
		api.HandleFunc("/session/register", h.register).Methods(http.MethodPost)
	}
	if ctl.Alarms == nil {
		return
	}
	api.HandleFunc("/alarms", h.list).Methods(http.MethodGet)
	api.HandleFunc("/alarms", h.create).Methods(http.MethodPost)
	api.HandleFunc("/alarms/sync", h.sync).Methods(http.MethodPost)
	api.HandleFunc("/alarms/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	api.HandleFunc("/alarms/{id:[0-9]+}", h.update).Methods(http.MethodPatch)
	api.HandleFunc("/alarms/{id:[0-9]+}", h.delete).Methods(http.MethodDelete)
	api.HandleFunc("/alarms/{id:[0-9]+}/toggle", h.toggle).Methods(http.MethodPost)
}

func (h *controlHandler) list(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Loaded() {
		alarms, err := h.svc.Load(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, alarms)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.List())
}

func (h *controlHandler) get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *controlHandler) create(w http.ResponseWriter, r *http.Request) {
	var in model.AlarmInput
	if !readJSON(w, r, &in) {
		return
	}
	a, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *controlHandler) update(w http.ResponseWriter, r *http.Request) {
	var patch model.AlarmPatch
	if !readJSON(w, r, &patch) {
		return
	}
	a, err := h.svc.Update(r.Context(), pathID(r), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *controlHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), pathID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *controlHandler) toggle(w http.ResponseWriter, r *http.Request) {
	var body toggleBody
	if !readJSON(w, r, &body) {
		return
	}
	a, err := h.svc.Toggle(r.Context(), pathID(r), body.Active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *controlHandler) sync(w http.ResponseWriter, r *http.Request) {
	alarms, err := h.svc.Sync(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alarms)
}

func (h *controlHandler) whoami(w http.ResponseWriter, r *http.Request) {
	user, ok := h.session.User()
	body := WhoamiBody{Authenticated: ok}
	if ok {
		body.User = &user
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *controlHandler) login(w http.ResponseWriter, r *http.Request) {
	var body CredentialsBody
	if !readJSON(w, r, &body) {
		return
	}
	user, err := h.session.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *controlHandler) register(w http.ResponseWriter, r *http.Request) {
	var body CredentialsBody
	if !readJSON(w, r, &body) {
		return
	}
	user, err := h.session.Register(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *controlHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} route variable; the route pattern admits digits only.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, timelyerrors.NewUserError("malformed request body: "+err.Error(), ""))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.DebugLog("control response write failed", logging.KeyError, err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := timelyerrors.KindOf(err)
	writeJSON(w, statusForKind(kind), errorBody{
		Error:      err.Error(),
		Kind:       kind,
		Suggestion: timelyerrors.GetSuggestion(err),
	})
}

func statusForKind(kind timelyerrors.Kind) int {
	switch kind {
	case timelyerrors.KindNotFound:
		return http.StatusNotFound
	case timelyerrors.KindUnauthorized:
		return http.StatusUnauthorized
	case timelyerrors.KindInvalid:
		return http.StatusBadRequest
	case timelyerrors.KindConflict:
		return http.StatusConflict
	case timelyerrors.KindTransport, timelyerrors.KindServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
