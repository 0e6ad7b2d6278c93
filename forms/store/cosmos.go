package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tekimax/tekimax-api/forms"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

const cosmosListQuery = "SELECT * FROM c ORDER BY c.createdAt DESC OFFSET 0 LIMIT @limit"

// container isola o SDK; a partição é sempre o tipo do formulário.
type container interface {
	create(ctx context.Context, partition string, doc []byte) error
	query(ctx context.Context, partition string, limit int) ([][]byte, error)
}

// Cosmos persiste no Azure Cosmos DB (container particionado por /type).
type Cosmos struct {
	c container
}

// NewCosmos usa a chave da conta quando key != "", senão DefaultAzureCredential
// (managed identity, az login, variáveis AZURE_*).
func NewCosmos(endpoint, key, database, containerName string) (*Cosmos, error) {
	var (
		client *azcosmos.Client
		err    error
	)
	if key != "" {
		cred, cerr := azcosmos.NewKeyCredential(key)
		if cerr != nil {
			return nil, fmt.Errorf("cosmos key: %w", cerr)
		}
		client, err = azcosmos.NewClientWithKey(endpoint, cred, nil)
	} else {
		cred, cerr := azidentity.NewDefaultAzureCredential(nil)
		if cerr != nil {
			return nil, fmt.Errorf("azure credential: %w", cerr)
		}
		client, err = azcosmos.NewClient(endpoint, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("cosmos client: %w", err)
	}

	cc, err := client.NewContainer(database, containerName)
	if err != nil {
		return nil, fmt.Errorf("cosmos container %s/%s: %w", database, containerName, err)
	}
	return &Cosmos{c: azContainer{cc}}, nil
}

func (c *Cosmos) Save(ctx context.Context, s forms.Submission) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	if err := c.c.create(ctx, string(s.Type), doc); err != nil {
		return cosmosErr("create", err)
	}
	return nil
}

// List consulta uma partição por tipo; sem filtro, as três e faz o merge.
func (c *Cosmos) List(ctx context.Context, f forms.Filter) ([]forms.Submission, error) {
	f = f.Normalize()

	partitions := []forms.Type{f.Type}
	if f.Type == "" {
		partitions = []forms.Type{forms.TypeContact, forms.TypeOnboarding, forms.TypeNewsletter}
	}

	out := make([]forms.Submission, 0)
	for _, p := range partitions {
		docs, err := c.c.query(ctx, string(p), f.Limit)
		if err != nil {
			return nil, cosmosErr("query", err)
		}
		for _, raw := range docs {
			var s forms.Submission
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, fmt.Errorf("decode submission: %w", err)
			}
			out = append(out, s)
		}
	}
	sortNewestFirst(out)
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// cosmosErr marca throttling e indisponibilidade como ErrStoreUnavailable.
func cosmosErr(op string, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusRequestTimeout:
			return fmt.Errorf("%w: cosmos %s: %s (%d)", forms.ErrStoreUnavailable, op, respErr.ErrorCode, respErr.StatusCode)
		}
		return fmt.Errorf("cosmos %s: %s (%d)", op, respErr.ErrorCode, respErr.StatusCode)
	}
	return fmt.Errorf("%w: cosmos %s: %v", forms.ErrStoreUnavailable, op, err)
}

type azContainer struct {
	cc *azcosmos.ContainerClient
}

func (a azContainer) create(ctx context.Context, partition string, doc []byte) error {
	_, err := a.cc.CreateItem(ctx, azcosmos.NewPartitionKeyString(partition), doc, nil)
	return err
}

func (a azContainer) query(ctx context.Context, partition string, limit int) ([][]byte, error) {
	pager := a.cc.NewQueryItemsPager(cosmosListQuery, azcosmos.NewPartitionKeyString(partition), &azcosmos.QueryOptions{
		QueryParameters: []azcosmos.QueryParameter{{Name: "@limit", Value: limit}},
	})

	var docs [][]byte
	for pager.More() && len(docs) < limit {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		docs = append(docs, page.Items...)
	}
	return docs, nil
}
