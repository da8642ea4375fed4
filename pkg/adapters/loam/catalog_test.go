package loam_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/internal/testutils"
	"github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salon = `---
id: salon
name: Hair salon
tags: [beauty]
theme: dark
primary_color: "#aa3366"
services:
  - id: cuts
    type: group
    label: Cuts
    children:
      - id: short
        type: service
        label: Short cut
        service:
          durationMinutes: 30
          price: 2500
          currency: EUR
questions:
  - id: name
    type: text
    label: Your name
    required: true
    text:
      max_length: 80
  - id: contact
    type: contact-info
    label: Contact
    contact_info:
      required_fields: [email]
---
Everything a hair salon needs.
`

func TestCatalog_ListAndGet(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t, map[string]string{
		"salon.md":   salon,
		"blank.json": `{"name": "Blank form"}`,
	})
	catalog := loam.New(repo)
	ctx := context.Background()

	all, err := catalog.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "blank", all[0].ID)
	assert.Equal(t, "salon", all[1].ID)

	tpl, err := catalog.GetTemplate(ctx, "salon")
	require.NoError(t, err)
	assert.Equal(t, "Hair salon", tpl.Name)
	assert.Equal(t, "Everything a hair salon needs.", tpl.Description)
	assert.Equal(t, []string{"beauty"}, tpl.Tags)
	assert.Equal(t, domain.ThemeDark, tpl.Data.Theme)

	short, ok := tpl.Data.ServiceTree.Find("short")
	require.True(t, ok)
	require.NotNil(t, short.Service)
	assert.Equal(t, 30, short.Service.DurationMinutes)

	require.Len(t, tpl.Data.BaseQuestions, 2)
	assert.Equal(t, 80, tpl.Data.BaseQuestions[0].Text.MaxLength)
	assert.Equal(t, []string{"email"}, tpl.Data.BaseQuestions[1].RequiredSubfields())

	_, err = catalog.GetTemplate(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestCatalog_RejectsInvalidTemplate(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t, map[string]string{
		"broken.md": `---
services:
  - id: svc
    type: service
    label: No config
---
`,
	})

	_, err := loam.New(repo).ListTemplates(context.Background())
	assert.Error(t, err)
}
