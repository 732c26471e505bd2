//go:build windows

package patching

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// UpdateAll searches for every pending software update, accepts EULAs,
// downloads and installs them as one batch.
func (w *WindowsUpdateProvider) UpdateAll(ctx context.Context) (UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return UpdateResult{}, err
	}

	result := UpdateResult{Provider: w.ID()}
	err := withSession(func(session *ole.IDispatch) error {
		collection, count, err := collectPending(session)
		if err != nil {
			return err
		}
		defer collection.Release()

		if count == 0 {
			result.Message = "no pending updates"
			return nil
		}
		log.Info("installing pending windows updates", "count", count)

		if err := runBatch(session, collection, "CreateUpdateDownloader", "Download"); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		installer, err := newBatchJob(session, collection, "CreateUpdateInstaller")
		if err != nil {
			return err
		}
		defer installer.Release()

		installVar, err := callWithRetry("Install", func() (*ole.VARIANT, error) {
			return oleutil.CallMethod(installer, "Install")
		})
		if err != nil {
			return fmt.Errorf("install failed: %w", err)
		}
		defer installVar.Clear()

		installResult := installVar.ToIDispatch()
		if installResult == nil {
			return fmt.Errorf("install failed: missing result")
		}
		defer installResult.Release()

		code, _ := getIntProperty(installResult, "ResultCode")
		if !wuSucceeded(code) {
			return fmt.Errorf("install failed with result code %d", code)
		}
		result.RebootRequired, _ = getBoolProperty(installResult, "RebootRequired")
		result.Message = fmt.Sprintf("installed %d updates", count)
		return nil
	})
	if err != nil {
		return UpdateResult{}, wuaError(err)
	}
	return result, nil
}

// wuaError classifies err by the HRESULT of the COM call that failed.
func wuaError(err error) error {
	var hresult uint32
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		hresult = uint32(oleErr.Code())
	}
	return classifyWUAError(err, hresult)
}

func withSession(action func(session *ole.IDispatch) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		return fmt.Errorf("failed to initialize COM: %w", err)
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("Microsoft.Update.Session")
	if err != nil {
		return fmt.Errorf("failed to create update session: %w", err)
	}
	defer unknown.Release()

	session, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("failed to query update session: %w", err)
	}
	defer session.Release()

	return action(session)
}

// collectPending returns an UpdateColl holding every pending update. The
// caller releases the collection.
func collectPending(session *ole.IDispatch) (*ole.IDispatch, int, error) {
	searcherVar, err := oleutil.CallMethod(session, "CreateUpdateSearcher")
	if err != nil {
		return nil, 0, fmt.Errorf("create searcher failed: %w", err)
	}
	defer searcherVar.Clear()

	searcher := searcherVar.ToIDispatch()
	if searcher == nil {
		return nil, 0, fmt.Errorf("create searcher failed: nil searcher")
	}
	defer searcher.Release()

	resultVar, err := callWithRetry("Search", func() (*ole.VARIANT, error) {
		return oleutil.CallMethod(searcher, "Search", pendingCriteria)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search failed: %w", err)
	}
	defer resultVar.Clear()

	searchResult := resultVar.ToIDispatch()
	if searchResult == nil {
		return nil, 0, fmt.Errorf("search failed: nil result")
	}
	defer searchResult.Release()

	updatesVar, err := oleutil.GetProperty(searchResult, "Updates")
	if err != nil {
		return nil, 0, fmt.Errorf("updates collection failed: %w", err)
	}
	defer updatesVar.Clear()

	updates := updatesVar.ToIDispatch()
	if updates == nil {
		return nil, 0, fmt.Errorf("updates collection missing")
	}
	defer updates.Release()

	count, err := getIntProperty(updates, "Count")
	if err != nil {
		return nil, 0, fmt.Errorf("updates count failed: %w", err)
	}

	collectionObj, err := oleutil.CreateObject("Microsoft.Update.UpdateColl")
	if err != nil {
		return nil, 0, fmt.Errorf("create update collection failed: %w", err)
	}
	defer collectionObj.Release()

	collection, err := collectionObj.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, 0, fmt.Errorf("update collection dispatch failed: %w", err)
	}

	added := 0
	for i := 0; i < count; i++ {
		itemVar, err := oleutil.CallMethod(updates, "Item", i)
		if err != nil {
			continue
		}
		update := itemVar.ToIDispatch()
		if update == nil {
			itemVar.Clear()
			continue
		}

		if accepted, _ := getBoolProperty(update, "EulaAccepted"); !accepted {
			if _, err := oleutil.CallMethod(update, "AcceptEula"); err != nil {
				title, _ := getStringProperty(update, "Title")
				log.Warn("EULA acceptance failed", "title", title, "error", err)
			}
		}

		if _, err := oleutil.CallMethod(collection, "Add", update); err == nil {
			added++
		}
		itemVar.Clear()
	}

	return collection, added, nil
}

// newBatchJob creates a downloader or installer bound to collection.
func newBatchJob(session, collection *ole.IDispatch, factory string) (*ole.IDispatch, error) {
	jobVar, err := oleutil.CallMethod(session, factory)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", factory, err)
	}
	job := jobVar.ToIDispatch()
	if job == nil {
		jobVar.Clear()
		return nil, fmt.Errorf("%s failed: nil object", factory)
	}
	job.AddRef()
	jobVar.Clear()

	if _, err := oleutil.PutProperty(job, "Updates", collection); err != nil {
		job.Release()
		return nil, fmt.Errorf("set updates failed: %w", err)
	}
	return job, nil
}

func runBatch(session, collection *ole.IDispatch, factory, method string) error {
	job, err := newBatchJob(session, collection, factory)
	if err != nil {
		return err
	}
	defer job.Release()

	resultVar, err := callWithRetry(method, func() (*ole.VARIANT, error) {
		return oleutil.CallMethod(job, method)
	})
	if err != nil {
		return fmt.Errorf("%s failed: %w", strings.ToLower(method), err)
	}
	defer resultVar.Clear()

	res := resultVar.ToIDispatch()
	if res == nil {
		return fmt.Errorf("%s failed: nil result", strings.ToLower(method))
	}
	defer res.Release()

	code, _ := getIntProperty(res, "ResultCode")
	if !wuSucceeded(code) {
		return fmt.Errorf("%s failed with result code %d", strings.ToLower(method), code)
	}
	return nil
}

// callWithRetry retries WUA calls that fail because another update
// operation holds the agent (WU_E_OPERATIONINPROGRESS).
func callWithRetry(operation string, fn func() (*ole.VARIANT, error)) (*ole.VARIANT, error) {
	backoffs := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}

	result, err := fn()
	if err == nil {
		return result, nil
	}

	for attempt, backoff := range backoffs {
		if !isOperationInProgressError(err.Error()) {
			return nil, err
		}

		log.Warn("WUA operation in progress, retrying",
			"operation", operation, "attempt", attempt+2, "backoff", backoff)
		time.Sleep(backoff)

		result, err = fn()
		if err == nil {
			return result, nil
		}
	}

	return nil, fmt.Errorf("%s failed after retries: %w", operation, err)
}

func isOperationInProgressError(errStr string) bool {
	return strings.Contains(errStr, "8024000E") || strings.Contains(errStr, "80240016")
}

func getStringProperty(dispatch *ole.IDispatch, name string) (string, error) {
	value, err := oleutil.GetProperty(dispatch, name)
	if err != nil {
		return "", err
	}
	defer value.Clear()
	return value.ToString(), nil
}

func getIntProperty(dispatch *ole.IDispatch, name string) (int, error) {
	value, err := oleutil.GetProperty(dispatch, name)
	if err != nil {
		return 0, err
	}
	defer value.Clear()
	return int(value.Val), nil
}

func getBoolProperty(dispatch *ole.IDispatch, name string) (bool, error) {
	value, err := oleutil.GetProperty(dispatch, name)
	if err != nil {
		return false, err
	}
	defer value.Clear()
	return value.Val != 0, nil
}
