package fakeapi

import (
	"encoding/json"
	"net/http"
	"sort"

	"golang.org/x/crypto/bcrypt"
)

type userPayload struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

type passwordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, _ *user) {
	s.mu.Lock()
	users := make([]user, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	s.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, _ *user) {
	var in userPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	var errs []fieldError
	if in.Email == nil {
		errs = append(errs, fieldError{Loc: []string{"body", "email"}, Msg: "Field required", Type: "missing"})
	}
	if in.Password == nil {
		errs = append(errs, fieldError{Loc: []string{"body", "password"}, Msg: "Field required", Type: "missing"})
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.MinCost)
	if err != nil {
		writeError(w, "Unable to hash password", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userByEmail(*in.Email) != nil {
		writeError(w, "Email already registered", http.StatusBadRequest)
		return
	}
	s.nextUserID++
	u := &user{ID: s.nextUserID, Email: *in.Email, Name: in.Name, hash: hash}
	s.users[u.ID] = u
	writeJSON(w, http.StatusOK, *u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, _ *user) {
	id := pathID(r)

	var in userPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	var hash []byte
	if in.Password != nil && *in.Password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.MinCost)
		if err != nil {
			writeError(w, "Unable to hash password", http.StatusInternalServerError)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		writeError(w, "User not found", http.StatusNotFound)
		return
	}
	if in.Email != nil && *in.Email != "" && *in.Email != u.Email {
		if s.userByEmail(*in.Email) != nil {
			writeError(w, "Email already registered", http.StatusBadRequest)
			return
		}
		u.Email = *in.Email
	}
	if in.Name != nil {
		u.Name = in.Name
	}
	if hash != nil {
		u.hash = hash
	}
	writeJSON(w, http.StatusOK, *u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, current *user) {
	id := pathID(r)
	if id == current.ID {
		writeError(w, "Cannot delete your own account", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, ok := s.users[id]
	delete(s.users, id)
	s.mu.Unlock()

	if !ok {
		writeError(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, current *user) {
	var in userPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if in.Email != nil && *in.Email != "" && *in.Email != current.Email {
		if s.userByEmail(*in.Email) != nil {
			writeError(w, "Email already registered", http.StatusBadRequest)
			return
		}
		current.Email = *in.Email
	}
	if in.Name != nil {
		current.Name = in.Name
	}
	writeJSON(w, http.StatusOK, *current)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, current *user) {
	var in passwordChange
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	hash := current.hash
	s.mu.Unlock()

	if bcrypt.CompareHashAndPassword(hash, []byte(in.CurrentPassword)) != nil {
		writeError(w, "Incorrect current password", http.StatusBadRequest)
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.MinCost)
	if err != nil {
		writeError(w, "Unable to hash password", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	current.hash = newHash
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}
