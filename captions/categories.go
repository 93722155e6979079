package captions

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Categories holds the two auxiliary category index files shipped with the
// trained checkpoints. They are loaded and cross-checked but nothing in sample
// assembly reads them.
type Categories struct {
	ImagesByCategory map[string][]string
	CategoryByImage  map[string]string
}

// LoadCategories reads the category->images and image->category files.
// Every image listed under a category must map back to that category.
func LoadCategories(cateImagePath, imageCatePath string) (*Categories, error) {
	c := &Categories{}
	if err := readJSON(cateImagePath, &c.ImagesByCategory); err != nil {
		return nil, err
	}
	if err := readJSON(imageCatePath, &c.CategoryByImage); err != nil {
		return nil, err
	}
	for cate, images := range c.ImagesByCategory {
		for _, img := range images {
			got, ok := c.CategoryByImage[img]
			if !ok {
				continue
			}
			if got != cate {
				return nil, errors.Errorf("image %q listed under category %q but mapped to %q", img, cate, got)
			}
		}
	}
	return c, nil
}

// NumCategories returns the number of distinct categories.
func (c *Categories) NumCategories() int {
	return len(c.ImagesByCategory)
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return errors.Wrapf(err, "failed to decode %s", path)
	}
	return nil
}
