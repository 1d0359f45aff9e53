package products

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"scatch/models"
	"scatch/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultBgColor    = "#f3f4f6"
	defaultTextColor  = "#374151"
	defaultPanelColor = "#ffffff"

	maxFormMemory = 10 << 20
)

type Store interface {
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, id, owner primitive.ObjectID, set bson.M) (*models.Product, error)
	Delete(ctx context.Context, id, owner primitive.ObjectID) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Product, error)
	Image(ctx context.Context, id primitive.ObjectID) ([]byte, string, error)
}

type Owners interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Owner, error)
	Names(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error)
}

type Handler struct {
	products Store
	owners   Owners
}

func NewHandler(products Store, owners Owners) *Handler {
	return &Handler{products: products, owners: owners}
}

// GetProducts handles GET /api/products
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	list, err := h.products.List(ctx)
	if err != nil {
		log.Println("list products:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}

	views, err := h.withOwnerNames(ctx, list)
	if err != nil {
		log.Println("owner names:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "products": views})
}

func (h *Handler) withOwnerNames(ctx context.Context, list []models.Product) ([]models.ProductView, error) {
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, p := range list {
		if !seen[p.Owner] {
			seen[p.Owner] = true
			ids = append(ids, p.Owner)
		}
	}
	names := map[primitive.ObjectID]string{}
	if len(ids) > 0 {
		var err error
		if names, err = h.owners.Names(ctx, ids); err != nil {
			return nil, err
		}
	}

	views := make([]models.ProductView, 0, len(list))
	for _, p := range list {
		views = append(views, models.NewProductView(p, names[p.Owner]))
	}
	return views, nil
}

// GetImage handles GET /api/products/:id/image
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := utils.ParseObjectID(ps.ByName("id"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	data, mime, err := h.products.Image(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Image not found")
			return
		}
		log.Println("product image:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch image")
		return
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// CreateProduct handles POST /api/products (multipart)
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ownerID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Owner not authenticated")
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	p := models.Product{
		Owner:      ownerID,
		BgColor:    defaultBgColor,
		TextColor:  defaultTextColor,
		PanelColor: defaultPanelColor,
	}
	if msg := applyForm(r, &p); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	img, status, msg := readImage(r, true)
	if msg != "" {
		utils.RespondWithError(w, status, msg)
		return
	}
	p.Image, p.ImageMimeType, p.ImageFilename = img.data, img.mime, img.filename

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.products.Create(ctx, &p); err != nil {
		log.Println("create product:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}
	p.Image = nil
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "product": models.NewProductView(p, "")})
}

// UpdateProduct handles PUT /api/products/:id (multipart, image optional).
// Only the owning seller may change a product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ownerID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Owner not authenticated")
		return
	}
	id, ok := utils.ParseObjectID(ps.ByName("id"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	current, err := h.products.FindByID(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Println("find product:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update product")
		return
	}
	if current == nil || current.Owner != ownerID {
		utils.RespondWithError(w, http.StatusNotFound, "Product not found or access denied")
		return
	}

	merged := *current
	if msg := applyForm(r, &merged); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	set := bson.M{
		"name":       merged.Name,
		"price":      merged.Price,
		"discount":   merged.Discount,
		"bgcolor":    merged.BgColor,
		"textcolor":  merged.TextColor,
		"panelcolor": merged.PanelColor,
	}

	img, status, msg := readImage(r, false)
	if msg != "" {
		utils.RespondWithError(w, status, msg)
		return
	}
	if img != nil {
		set["image"] = img.data
		set["imageMimeType"] = img.mime
		set["imageFilename"] = img.filename
	}

	updated, err := h.products.Update(ctx, id, ownerID, set)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Product not found or access denied")
			return
		}
		log.Println("update product:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update product")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "product": models.NewProductView(*updated, "")})
}

// DeleteProduct handles DELETE /api/products/:id
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ownerID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Owner not authenticated")
		return
	}
	id, ok := utils.ParseObjectID(ps.ByName("id"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	if err := h.products.Delete(r.Context(), id, ownerID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Product not found or access denied")
			return
		}
		log.Println("delete product:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete product")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "message": "Product deleted"})
}

// AdminProducts handles GET /api/admin/products: the seller's own catalog.
func (h *Handler) AdminProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ownerID, ok := utils.GetPrincipalID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Owner not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	owner, err := h.owners.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			utils.RespondWithError(w, http.StatusUnauthorized, "Owner account not found")
			return
		}
		log.Println("find owner:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}

	list, err := h.products.ListByOwner(ctx, ownerID)
	if err != nil {
		log.Println("list owner products:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	views := make([]models.ProductView, 0, len(list))
	for _, p := range list {
		views = append(views, models.NewProductView(p, owner.Fullname))
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":  true,
		"products": views,
		"owner":    owner,
	})
}

// applyForm copies the non-blank submitted fields onto p and validates the result.
func applyForm(r *http.Request, p *models.Product) string {
	if name := strings.TrimSpace(r.FormValue("name")); name != "" {
		p.Name = name
	}
	if raw := r.FormValue("price"); strings.TrimSpace(raw) != "" {
		v, ok := utils.ParseFloat(raw)
		if !ok {
			return "Price must be a number"
		}
		p.Price = v
	}
	if raw := r.FormValue("discount"); strings.TrimSpace(raw) != "" {
		v, ok := utils.ParseFloat(raw)
		if !ok {
			return "Discount must be a number"
		}
		p.Discount = v
	}
	for field, dst := range map[string]*string{
		"bgcolor":    &p.BgColor,
		"textcolor":  &p.TextColor,
		"panelcolor": &p.PanelColor,
	} {
		if v := strings.TrimSpace(r.FormValue(field)); v != "" {
			*dst = v
		}
	}

	switch {
	case p.Name == "":
		return "Product name is required"
	case p.Price <= 0:
		return "Price must be greater than 0"
	case p.Discount < 0 || p.Discount > p.Price:
		return "Discount must be between 0 and the price"
	}
	return ""
}

type upload struct {
	data     []byte
	mime     string
	filename string
}

// readImage returns nil without an error message when the image is optional and absent.
func readImage(r *http.Request, required bool) (*upload, int, string) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, 0, ""
		}
		return nil, http.StatusBadRequest, "Product image is required"
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, http.StatusBadRequest, "Failed to read image"
	}

	data, mime, err := ProcessImage(raw)
	switch {
	case errors.Is(err, ErrImageTooLarge):
		return nil, http.StatusBadRequest, "Image exceeds 5MB"
	case errors.Is(err, ErrUnsupportedImage):
		return nil, http.StatusBadRequest, "Unsupported image type"
	case errors.Is(err, ErrCorruptImage):
		return nil, http.StatusBadRequest, "Invalid image file"
	case errors.Is(err, ErrImageDimensions):
		return nil, http.StatusBadRequest, "Image dimensions too large"
	case err != nil:
		log.Println("process image:", err)
		return nil, http.StatusInternalServerError, "Failed to process image"
	}
	return &upload{data: data, mime: mime, filename: utils.SanitizeFilename(header.Filename)}, 0, ""
}
