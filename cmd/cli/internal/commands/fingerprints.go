package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wolfeidau/fpconsole/internal/models"
	"gopkg.in/yaml.v3"
)

type FingerprintsCmd struct {
	List        FingerprintsListCmd        `cmd:"" help:"List fingerprints"`
	Search      FingerprintsSearchCmd      `cmd:"" help:"Search fingerprints"`
	Get         FingerprintsGetCmd         `cmd:"" help:"Show a fingerprint"`
	Submit      FingerprintsSubmitCmd      `cmd:"" help:"Submit a fingerprint"`
	BatchSubmit FingerprintsBatchSubmitCmd `cmd:"" help:"Submit fingerprints from a YAML or JSON file"`
	Approved    FingerprintsApprovedCmd    `cmd:"" help:"List approved fingerprints"`
	Pending     FingerprintsPendingCmd     `cmd:"" help:"List fingerprints awaiting review (admin)"`
	Approve     FingerprintsApproveCmd     `cmd:"" help:"Approve or reject a fingerprint (admin)"`
	Update      FingerprintsUpdateCmd      `cmd:"" help:"Update fingerprint fields"`
	Delete      FingerprintsDeleteCmd      `cmd:"" help:"Delete a fingerprint"`
}

type FingerprintsListCmd struct {
	PageFlags `embed:""`
	Status    string `help:"Filter by status (pending, approved, rejected)"`
}

func (c *FingerprintsListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		q := c.values()
		if c.Status != "" {
			q.Set("status", c.Status)
		}
		page, err := con.API.Fingerprints.List(ctx, q)
		if err != nil {
			return err
		}
		printFingerprints(page, c.PageFlags)
		return nil
	})
}

type FingerprintsSearchCmd struct {
	PageFlags `embed:""`
	Query     string `arg:"" help:"Keyword to search for"`
}

func (c *FingerprintsSearchCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		q := c.values()
		q.Set("keyword", c.Query)
		page, err := con.API.Fingerprints.Search(ctx, q)
		if err != nil {
			return err
		}
		printFingerprints(page, c.PageFlags)
		return nil
	})
}

type FingerprintsGetCmd struct {
	ID int64 `arg:"" help:"Fingerprint ID"`
}

func (c *FingerprintsGetCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		fp, err := con.API.Fingerprints.Get(ctx, c.ID)
		if err != nil {
			return err
		}
		return printJSON(fp)
	})
}

type FingerprintsSubmitCmd struct {
	Keyword     string `arg:"" help:"Fingerprint keyword"`
	Description string `help:"Description"`
	Data        string `help:"JSON fingerprint data"`
}

func (c *FingerprintsSubmitCmd) Run(ctx context.Context, globals *Globals) error {
	fp := &models.Fingerprint{Keyword: c.Keyword, Description: c.Description}
	if c.Data != "" {
		if !json.Valid([]byte(c.Data)) {
			return errors.New("--data must be valid JSON")
		}
		fp.Data = json.RawMessage(c.Data)
	}

	return globals.run(ctx, func(con *Console) error {
		created, err := con.API.Fingerprints.Submit(ctx, fp)
		if err != nil {
			return err
		}
		fmt.Printf("Fingerprint submitted with ID: %d (status: %s)\n", created.ID, created.Status)
		return nil
	})
}

type FingerprintsBatchSubmitCmd struct {
	File string `arg:"" help:"YAML or JSON file with a list of fingerprints" type:"existingfile"`
}

// fingerprintFile is one entry of a batch file.
type fingerprintFile struct {
	Keyword     string         `yaml:"keyword" json:"keyword"`
	Description string         `yaml:"description" json:"description"`
	Data        map[string]any `yaml:"data" json:"data"`
}

func (c *FingerprintsBatchSubmitCmd) Run(ctx context.Context, globals *Globals) error {
	fps, err := loadFingerprints(c.File)
	if err != nil {
		return err
	}

	return globals.run(ctx, func(con *Console) error {
		result, err := con.API.Fingerprints.SubmitBatch(ctx, fps)
		if err != nil {
			return err
		}
		fmt.Printf("Submitted %d fingerprints\n", len(fps))
		return printJSON(result)
	})
}

func loadFingerprints(path string) ([]models.Fingerprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var entries []fingerprintFile
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &entries)
	} else {
		err = yaml.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no fingerprints in %s", path)
	}

	fps := make([]models.Fingerprint, 0, len(entries))
	for i, e := range entries {
		if e.Keyword == "" {
			return nil, fmt.Errorf("entry %d: keyword is required", i+1)
		}
		fp := models.Fingerprint{Keyword: e.Keyword, Description: e.Description}
		if e.Data != nil {
			raw, err := json.Marshal(e.Data)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i+1, err)
			}
			fp.Data = raw
		}
		fps = append(fps, fp)
	}

	return fps, nil
}

type FingerprintsApprovedCmd struct {
	PageFlags `embed:""`
}

func (c *FingerprintsApprovedCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		page, err := con.API.Fingerprints.Approved(ctx, c.values())
		if err != nil {
			return err
		}
		printFingerprints(page, c.PageFlags)
		return nil
	})
}

type FingerprintsPendingCmd struct {
	PageFlags `embed:""`
}

func (c *FingerprintsPendingCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		page, err := con.API.Fingerprints.Pending(ctx, c.values())
		if err != nil {
			return err
		}
		printFingerprints(page, c.PageFlags)
		return nil
	})
}

type FingerprintsApproveCmd struct {
	ID      int64  `arg:"" help:"Fingerprint ID"`
	Reject  bool   `help:"Reject instead of approve" default:"false"`
	Comment string `help:"Review comment"`
}

func (c *FingerprintsApproveCmd) Run(ctx context.Context, globals *Globals) error {
	decision := models.ReviewDecision{Status: models.FingerprintApproved, Comment: c.Comment}
	if c.Reject {
		decision.Status = models.FingerprintRejected
	}

	return globals.run(ctx, func(con *Console) error {
		fp, err := con.API.Fingerprints.Approve(ctx, c.ID, decision)
		if err != nil {
			return err
		}
		fmt.Printf("Fingerprint %d is now %s\n", fp.ID, fp.Status)
		return nil
	})
}

type FingerprintsUpdateCmd struct {
	ID    int64             `arg:"" help:"Fingerprint ID"`
	Field map[string]string `help:"Field to set, e.g. --field description=left thumb" required:""`
}

func (c *FingerprintsUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	fields := make(map[string]any, len(c.Field))
	for k, v := range c.Field {
		fields[k] = v
	}

	return globals.run(ctx, func(con *Console) error {
		fp, err := con.API.Fingerprints.Update(ctx, c.ID, fields)
		if err != nil {
			return err
		}
		return printJSON(fp)
	})
}

type FingerprintsDeleteCmd struct {
	ID int64 `arg:"" help:"Fingerprint ID"`
}

func (c *FingerprintsDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, func(con *Console) error {
		if err := con.API.Fingerprints.Delete(ctx, c.ID); err != nil {
			return err
		}
		fmt.Printf("Fingerprint %d deleted\n", c.ID)
		return nil
	})
}

func printFingerprints(page *models.Page[models.Fingerprint], p PageFlags) {
	if len(page.Results) == 0 {
		fmt.Println("No fingerprints found.")
		return
	}

	fmt.Printf("%-8s %-30s %-10s %-16s %-20s\n", "ID", "Keyword", "Status", "Submitted By", "Created At")
	fmt.Println(strings.Repeat("─", 90))

	for _, fp := range page.Results {
		fmt.Printf("%-8d %-30s %-10s %-16s %-20s\n",
			fp.ID,
			truncate(fp.Keyword, 30),
			fp.Status,
			truncate(fp.SubmittedBy, 16),
			formatTime(fp.CreatedAt))
	}

	printPageFooter(page.Count, len(page.Results), p, page.Next != "")
}
