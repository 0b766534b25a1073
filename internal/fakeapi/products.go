package fakeapi

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	search := strings.ToLower(q.Get("search"))

	skip, _ := strconv.Atoi(q.Get("skip"))
	limit := 100
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	s.mu.Lock()
	matched := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if category != "" && p.Category != category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		matched = append(matched, *p)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if skip > len(matched) {
		skip = len(matched)
	}
	matched = matched[skip:]
	if limit >= 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	s.mu.Lock()
	p, ok := s.products[id]
	var out Product
	if ok {
		out = *p
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, "Product not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request, _ *user) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, "Expected multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	values := r.MultipartForm.Value

	var errs []fieldError
	required := func(name string) string {
		v, ok := values[name]
		if !ok || len(v) == 0 {
			errs = append(errs, fieldError{Loc: []string{"body", name}, Msg: "Field required", Type: "missing"})
			return ""
		}
		return v[0]
	}

	p := Product{
		Name:        required("name"),
		Description: required("description"),
		Category:    required("category"),
		Brand:       required("brand"),
	}
	priceRaw := required("price")
	stockRaw := required("stock")
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	var err error
	if p.Price, err = strconv.ParseFloat(priceRaw, 64); err != nil {
		writeValidation(w, []fieldError{{Loc: []string{"body", "price"}, Msg: "Input should be a valid number", Type: "float_parsing"}})
		return
	}
	if p.Stock, err = strconv.Atoi(stockRaw); err != nil {
		writeValidation(w, []fieldError{{Loc: []string{"body", "stock"}, Msg: "Input should be a valid integer", Type: "int_parsing"}})
		return
	}
	if v, ok := values["rating"]; ok && len(v) > 0 {
		if p.Rating, err = strconv.ParseFloat(v[0], 64); err != nil {
			writeValidation(w, []fieldError{{Loc: []string{"body", "rating"}, Msg: "Input should be a valid number", Type: "float_parsing"}})
			return
		}
	}

	imagePath, err := s.saveImage(r, p.Name)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.ImagePath = imagePath

	s.mu.Lock()
	s.nextProductID++
	p.ID = s.nextProductID
	p.CreatedAt = now()
	s.products[p.ID] = &p
	out := p
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

// handleUpdateProduct applies exactly the fields present in the form
func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request, _ *user) {
	id := pathID(r)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, "Expected multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	values := r.MultipartForm.Value
	present := func(name string) (string, bool) {
		v, ok := values[name]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}

	s.mu.Lock()
	existing, ok := s.products[id]
	var updated Product
	if ok {
		updated = *existing
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, "Product not found", http.StatusNotFound)
		return
	}

	if v, ok := present("name"); ok {
		updated.Name = v
	}
	if v, ok := present("description"); ok {
		updated.Description = v
	}
	if v, ok := present("category"); ok {
		updated.Category = v
	}
	if v, ok := present("brand"); ok {
		updated.Brand = v
	}
	if v, ok := present("price"); ok {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeValidation(w, []fieldError{{Loc: []string{"body", "price"}, Msg: "Input should be a valid number", Type: "float_parsing"}})
			return
		}
		updated.Price = price
	}
	if v, ok := present("stock"); ok {
		stock, err := strconv.Atoi(v)
		if err != nil {
			writeValidation(w, []fieldError{{Loc: []string{"body", "stock"}, Msg: "Input should be a valid integer", Type: "int_parsing"}})
			return
		}
		updated.Stock = stock
	}
	if v, ok := present("rating"); ok {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeValidation(w, []fieldError{{Loc: []string{"body", "rating"}, Msg: "Input should be a valid number", Type: "float_parsing"}})
			return
		}
		updated.Rating = rating
	}

	imagePath, err := s.saveImage(r, updated.Name)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		writeError(w, "Product not found", http.StatusNotFound)
		return
	}
	if imagePath != nil {
		if updated.ImagePath != nil {
			delete(s.uploads, strings.TrimPrefix(*updated.ImagePath, "/uploads/"))
		}
		updated.ImagePath = imagePath
	}
	s.products[id] = &updated
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request, _ *user) {
	id := pathID(r)

	s.mu.Lock()
	p, ok := s.products[id]
	if ok {
		if p.ImagePath != nil {
			delete(s.uploads, strings.TrimPrefix(*p.ImagePath, "/uploads/"))
		}
		delete(s.products, id)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, "Product not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	seen := make(map[string]bool)
	categories := make([]string, 0)
	for _, p := range s.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			categories = append(categories, p.Category)
		}
	}
	s.mu.Unlock()

	sort.Strings(categories)
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	s.mu.Lock()
	u, ok := s.uploads[name]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", u.contentType)
	_, _ = w.Write(u.data)
}

// saveImage stores the optional "image" part and returns its served path
func (s *Server) saveImage(r *http.Request, productName string) (*string, error) {
	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	s.mu.Lock()
	s.nextUpload++
	name := fmt.Sprintf("%s_%d%s", strings.ReplaceAll(productName, " ", "_"), s.nextUpload, filepath.Ext(header.Filename))
	s.uploads[name] = upload{contentType: header.Header.Get("Content-Type"), data: data}
	s.mu.Unlock()

	path := "/uploads/" + name
	return &path, nil
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}
