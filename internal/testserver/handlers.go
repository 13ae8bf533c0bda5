package testserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

const defaultPerPage = 10

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, fields map[string][]string) {
	writeJSON(w, status, envelope{Success: false, Message: message, Errors: fields})
}

func writeValidation(w http.ResponseWriter, fields map[string][]string) {
	writeError(w, http.StatusUnprocessableEntity, "The given data was invalid.", fields)
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) authResponse(w http.ResponseWriter, status int, message string, a *account) {
	token, err := s.issueToken(a.user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	s.mu.Lock()
	user := a.user
	s.mu.Unlock()
	writeData(w, status, message, types.AuthPayload{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.opts.TokenTTL.Seconds()),
		User:      &user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Phone    string `json:"phone"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed JSON body", nil)
		return
	}

	login := firstNonEmpty(req.Login, req.Phone, req.Email)
	fields := map[string][]string{}
	if login == "" {
		fields["login"] = []string{"The phone or email field is required."}
	}
	if req.Password == "" {
		fields["password"] = []string{"The password field is required."}
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	s.mu.Lock()
	var found *account
	for _, a := range s.accounts {
		if a.user.Phone == login || strings.EqualFold(a.user.Email, login) {
			found = a
			break
		}
	}
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.passwordHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if found.user.Status == "suspended" {
		writeError(w, http.StatusForbidden, "Your account has been suspended", nil)
		return
	}
	s.authResponse(w, http.StatusOK, "Login successful", found)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                 string `json:"name"`
		Phone                string `json:"phone"`
		Email                string `json:"email"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"password_confirmation"`
		Role                 string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed JSON body", nil)
		return
	}

	fields := map[string][]string{}
	if req.Name == "" {
		fields["name"] = []string{"The name field is required."}
	}
	if req.Phone == "" {
		fields["phone"] = []string{"The phone field is required."}
	}
	if len(req.Password) < 8 {
		fields["password"] = []string{"The password must be at least 8 characters."}
	} else if req.Password != req.PasswordConfirmation {
		fields["password"] = []string{"The password confirmation does not match."}
	}
	if req.Role != types.RoleCustomer && req.Role != types.RoleFundi {
		fields["role"] = []string{"The selected role is invalid."}
	}

	s.mu.Lock()
	for _, a := range s.accounts {
		if req.Phone != "" && a.user.Phone == req.Phone {
			fields["phone"] = []string{"The phone has already been taken."}
		}
		if req.Email != "" && strings.EqualFold(a.user.Email, req.Email) {
			fields["email"] = []string{"The email has already been taken."}
		}
	}
	if len(fields) > 0 {
		s.mu.Unlock()
		writeValidation(w, fields)
		return
	}

	roleID := 1
	if req.Role == types.RoleFundi {
		roleID = 2
	}
	id := s.addAccountLocked(types.User{
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  req.Email,
		Roles:  []types.Role{{ID: roleID, Name: req.Role}},
		Status: "active",
	}, req.Password)
	a := s.accounts[id]
	s.addNotificationLocked(id, "welcome", "Welcome to Fundi", "Thanks for joining")
	s.mu.Unlock()

	s.authResponse(w, http.StatusCreated, "Registration successful", a)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, a *account) {
	s.revokeToken(tokenID(r))
	writeData(w, http.StatusOK, "Logged out", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, a *account) {
	s.mu.Lock()
	user := a.user
	s.mu.Unlock()
	writeData(w, http.StatusOK, "", user)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, a *account) {
	s.revokeToken(tokenID(r))
	s.authResponse(w, http.StatusOK, "Token refreshed", a)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, a *account) {
	var req struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Location *string `json:"location"`
		Avatar   *string `json:"avatar"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed JSON body", nil)
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeValidation(w, map[string][]string{"name": {"The name field must not be empty."}})
		return
	}

	s.mu.Lock()
	if req.Name != nil {
		a.user.Name = *req.Name
	}
	if req.Email != nil {
		a.user.Email = *req.Email
	}
	if req.Location != nil {
		a.user.Location = *req.Location
	}
	if req.Avatar != nil {
		a.user.Avatar = *req.Avatar
	}
	user := a.user
	s.mu.Unlock()

	writeData(w, http.StatusOK, "Profile updated", user)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cats := append([]types.Category(nil), s.categories...)
	s.mu.Unlock()
	writeData(w, http.StatusOK, "", cats)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request, a *account) {
	q := r.URL.Query()
	categoryID, _ := strconv.ParseInt(q.Get("category_id"), 10, 64)
	search := strings.ToLower(q.Get("search"))
	status := q.Get("status")

	s.mu.Lock()
	var matched []types.Job
	for _, j := range s.jobs {
		if categoryID != 0 && j.CategoryID != categoryID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(j.Title+" "+j.Description+" "+j.Location), search) {
			continue
		}
		if status != "" && j.Status != status {
			continue
		}
		matched = append(matched, s.jobViewLocked(j))
	}
	s.mu.Unlock()

	writeData(w, http.StatusOK, "", paginate(r, matched))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, a *account) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	s.mu.Lock()
	job := s.findJobLocked(id)
	var view types.Job
	if job != nil {
		view = s.jobViewLocked(job)
	}
	s.mu.Unlock()

	if job == nil {
		writeError(w, http.StatusNotFound, "Job not found", nil)
		return
	}
	writeData(w, http.StatusOK, "", view)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request, a *account) {
	if !a.user.IsCustomer() {
		writeError(w, http.StatusForbidden, "Only customers can post jobs", nil)
		return
	}

	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		CategoryID  int64   `json:"category_id"`
		Location    string  `json:"location"`
		Budget      float64 `json:"budget"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed JSON body", nil)
		return
	}

	fields := map[string][]string{}
	if req.Title == "" {
		fields["title"] = []string{"The title field is required."}
	}
	if req.Budget < 0 {
		fields["budget"] = []string{"The budget must be at least 0."}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	catIdx := -1
	for i, c := range s.categories {
		if c.ID == req.CategoryID {
			catIdx = i
		}
	}
	if catIdx < 0 {
		fields["category_id"] = []string{"The selected category id is invalid."}
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	now := s.opts.Now().UTC()
	job := &types.Job{
		ID:          int64(len(s.jobs) + 1),
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Location:    req.Location,
		Budget:      req.Budget,
		Status:      types.JobStatusOpen,
		CustomerID:  a.user.ID,
		CreatedAt:   &now,
	}
	s.jobs = append(s.jobs, job)
	s.categories[catIdx].JobsCount++
	writeData(w, http.StatusCreated, "Job posted", s.jobViewLocked(job))
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request, a *account) {
	if !a.user.IsFundi() {
		writeError(w, http.StatusForbidden, "Only fundis can apply for jobs", nil)
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	var req struct {
		Message        string  `json:"message"`
		ProposedAmount float64 `json:"proposed_amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed JSON body", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.findJobLocked(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "Job not found", nil)
		return
	}
	if job.Status != types.JobStatusOpen {
		writeValidation(w, map[string][]string{"job": {"This job is no longer accepting applications."}})
		return
	}
	for _, app := range s.applications {
		if app.JobID == id && app.FundiID == a.user.ID {
			writeValidation(w, map[string][]string{"job": {"You have already applied for this job."}})
			return
		}
	}

	s.nextID++
	now := s.opts.Now().UTC()
	app := &types.JobApplication{
		ID:             s.nextID,
		JobID:          id,
		FundiID:        a.user.ID,
		Message:        req.Message,
		ProposedAmount: req.ProposedAmount,
		Status:         "pending",
		CreatedAt:      &now,
	}
	s.applications = append(s.applications, app)
	s.addNotificationLocked(job.CustomerID, "application", "New application", fmt.Sprintf("%s applied for %q", a.user.Name, job.Title))
	writeData(w, http.StatusCreated, "Application submitted", app)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, a *account) {
	s.mu.Lock()
	list := make([]types.Notification, 0, len(s.notifications[a.user.ID]))
	for _, n := range s.notifications[a.user.ID] {
		list = append(list, *n)
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, "", paginate(r, list))
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request, a *account) {
	s.mu.Lock()
	count := 0
	for _, n := range s.notifications[a.user.ID] {
		if n.ReadAt == nil {
			count++
		}
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, "", map[string]int{"count": count})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, a *account) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications[a.user.ID] {
		if n.ID == id {
			if n.ReadAt == nil {
				now := s.opts.Now().UTC()
				n.ReadAt = &now
			}
			writeData(w, http.StatusOK, "Notification marked as read", *n)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Notification not found", nil)
}

func (s *Server) handleReadAll(w http.ResponseWriter, r *http.Request, a *account) {
	s.mu.Lock()
	now := s.opts.Now().UTC()
	updated := 0
	for _, n := range s.notifications[a.user.ID] {
		if n.ReadAt == nil {
			n.ReadAt = &now
			updated++
		}
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, "All notifications marked as read", map[string]int{"updated": updated})
}

func (s *Server) findJobLocked(id int64) *types.Job {
	for _, j := range s.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (s *Server) jobViewLocked(j *types.Job) types.Job {
	view := *j
	for _, c := range s.categories {
		if c.ID == j.CategoryID {
			cat := c
			view.Category = &cat
		}
	}
	count := 0
	for _, app := range s.applications {
		if app.JobID == j.ID {
			count++
		}
	}
	view.ApplicationsCount = count
	return view
}

// paginate slices items the way Laravel's LengthAwarePaginator serializes
func paginate[T any](r *http.Request, items []T) types.Page[T] {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = defaultPerPage
	}

	total := len(items)
	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}

	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	p := types.Page[T]{
		Pagination: types.Pagination{
			CurrentPage: page,
			LastPage:    lastPage,
			PerPage:     perPage,
			Total:       total,
		},
		Data: append([]T{}, items[start:end]...),
	}
	if page < lastPage {
		p.NextPageURL = pageURL(r, page+1)
	}
	if page > 1 {
		p.PrevPageURL = pageURL(r, page-1)
	}
	return p
}

func pageURL(r *http.Request, page int) string {
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("http://%s%s?%s", r.Host, r.URL.Path, q.Encode())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
