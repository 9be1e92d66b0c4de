package routes

import (
	"errors"
	"math"
	"mime/multipart"
	"strconv"
	"time"

	"shopapi/db"
	"shopapi/models"
	"shopapi/upload"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// UploadDir is where incoming photos are written. Served read-only under
// models.PublicUploadPrefix.
var UploadDir = "./uploads"

var validate = validator.New()

// ProductResponse is a Product with the photo column decoded into public
// image URLs.
type ProductResponse struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	Price     float64         `json:"price"`
	Photo     []string        `json:"photo"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Reviews   []models.Review `json:"reviews"`
}

type CreateReviewRequest struct {
	Rating  float64 `json:"rating" validate:"required"`
	Comment string  `json:"comment"`
}

func SetupRoutes(app *fiber.App) {
	app.Get("/", healthCheck)

	api := app.Group("/api")
	api.Get("/products", getAllProducts)

	product := api.Group("/product")
	product.Post("/", createProduct)
	product.Get("/:id", getProduct)
	product.Put("/:id", updateProduct)
	product.Delete("/:id", deleteProduct)
	product.Post("/:id/review", createReview)
	product.Get("/:id/reviews", getProductReviews)
}

func healthCheck(c *fiber.Ctx) error {
	return c.SendString("E-commerce API up and running.")
}

// parsePrice coerces a form price value into a finite non-negative float.
// ParseFloat accepts "NaN" and "Inf", neither of which is a storable price.
func parsePrice(raw string) (float64, error) {
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, errors.New("price must be a non-negative number")
	}
	return price, nil
}

func productResponse(product models.Product) (ProductResponse, error) {
	photo, err := models.DecodeImagePaths(product.Photo)
	if err != nil {
		return ProductResponse{}, err
	}
	reviews := product.Reviews
	if reviews == nil {
		reviews = []models.Review{}
	}
	return ProductResponse{
		ID:        product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Photo:     photo,
		CreatedAt: product.CreatedAt,
		UpdatedAt: product.UpdatedAt,
		Reviews:   reviews,
	}, nil
}

// GetAllProducts - GET /api/products
func getAllProducts(c *fiber.Ctx) error {
	var products []models.Product

	if err := db.DB.Preload("Reviews").Find(&products).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get products",
		})
	}

	responses := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		resp, err := productResponse(product)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Stored photo data is corrupt for product " + strconv.Itoa(int(product.ID)),
			})
		}
		responses = append(responses, resp)
	}

	return c.JSON(responses)
}

// GetProduct - GET /api/product/:id
func getProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid product id",
		})
	}

	var product models.Product
	if err := db.DB.Preload("Reviews").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Product not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get product",
		})
	}

	resp, err := productResponse(product)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Stored photo data is corrupt",
		})
	}

	return c.JSON(resp)
}

// CreateProduct - POST /api/product (multipart: name, price, photos[])
func createProduct(c *fiber.Ctx) error {
	name := c.FormValue("name")
	priceRaw := c.FormValue("price")
	if name == "" || priceRaw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name, price and photos are required",
		})
	}

	price, err := parsePrice(priceRaw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid price",
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Expected a multipart form",
		})
	}
	files := form.File["photos"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one photo is required",
		})
	}

	paths, err := upload.Save(c, UploadDir, files)
	if err != nil {
		if errors.Is(err, upload.ErrUnsupportedType) || errors.Is(err, upload.ErrTooManyFiles) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save uploaded photos",
		})
	}

	encoded, err := models.EncodeImagePaths(paths)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to encode photo paths",
		})
	}

	product := models.Product{Name: name, Price: price, Photo: encoded}
	if err := validate.Struct(&product); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := db.DB.Create(&product).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create product",
		})
	}

	resp, err := productResponse(product)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Stored photo data is corrupt",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// UpdateProduct - PUT /api/product/:id (multipart: name, price, photos[] optional)
func updateProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid product id",
		})
	}

	name := c.FormValue("name")
	priceRaw := c.FormValue("price")
	if name == "" || priceRaw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name and price are required",
		})
	}

	price, err := parsePrice(priceRaw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid price",
		})
	}

	var existing models.Product
	if err := db.DB.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Product not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to find product",
		})
	}

	updates := map[string]interface{}{
		"name":  name,
		"price": price,
	}

	// No new photos means the stored photo list stays as it is.
	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil && form != nil {
		files = form.File["photos"]
	}
	if len(files) > 0 {
		paths, err := upload.Save(c, UploadDir, files)
		if err != nil {
			if errors.Is(err, upload.ErrUnsupportedType) || errors.Is(err, upload.ErrTooManyFiles) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to save uploaded photos",
			})
		}
		encoded, err := models.EncodeImagePaths(paths)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to encode photo paths",
			})
		}
		updates["photo"] = encoded
	}

	if err := db.DB.Model(&existing).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update product",
		})
	}

	var updated models.Product
	if err := db.DB.Preload("Reviews").First(&updated, id).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reload product",
		})
	}

	resp, err := productResponse(updated)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Stored photo data is corrupt",
		})
	}

	return c.JSON(resp)
}

// DeleteProduct - DELETE /api/product/:id
func deleteProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid product id",
		})
	}

	var product models.Product
	if err := db.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Product not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to find product",
		})
	}

	// Uploaded files and review rows are left behind on purpose; nothing
	// reclaims them.
	if err := db.DB.Delete(&product).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete product",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Product deleted successfully",
	})
}

// CreateReview - POST /api/product/:id/review
func createReview(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid product id",
		})
	}

	req := new(CreateReviewRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}

	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Rating is required",
		})
	}

	review := models.Review{
		ProductID: uint(id),
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := db.DB.Create(&review).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create review",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(review)
}

// GetProductReviews - GET /api/product/:id/reviews
func getProductReviews(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid product id",
		})
	}

	reviews := make([]models.Review, 0)
	if err := db.DB.Where("product_id = ?", id).Find(&reviews).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get reviews",
		})
	}

	return c.JSON(reviews)
}
